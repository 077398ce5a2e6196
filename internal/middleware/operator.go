package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"
)

const operatorLocal = "operator"

// OperatorAuth gates the console behind HTTP basic auth checked against a bcrypt
// hash. With an empty hash every request passes as the configured user.
func OperatorAuth(user, passwordHash string) fiber.Handler {
	if passwordHash == "" {
		return func(c *fiber.Ctx) error {
			c.Locals(operatorLocal, user)
			return c.Next()
		}
	}
	hash := []byte(passwordHash)
	return basicauth.New(basicauth.Config{
		Realm:           "userconsole",
		ContextUsername: operatorLocal,
		Authorizer: func(u, p string) bool {
			userOK := subtle.ConstantTimeCompare([]byte(u), []byte(user)) == 1
			passOK := bcrypt.CompareHashAndPassword(hash, []byte(p)) == nil
			return userOK && passOK
		},
	})
}

// OperatorFrom returns the authenticated operator name.
func OperatorFrom(c *fiber.Ctx) string {
	name, _ := c.Locals(operatorLocal).(string)
	return name
}
