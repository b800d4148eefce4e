package response

import (
	"todo_auth/internal/apperror"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const GenericError = "Something went wrong!"

type MessageBody struct {
	MsgBody  string `json:"msgBody"`
	MsgError bool   `json:"msgError"`
}

type Envelope struct {
	Message MessageBody `json:"message"`
}

func Message(c *gin.Context, status int, msg string, isError bool) {
	c.JSON(status, Envelope{Message: MessageBody{MsgBody: msg, MsgError: isError}})
}

// Error writes the envelope for err. Server side failures are logged and
// replaced with a generic message.
func Error(c *gin.Context, err error) {
	status := apperror.StatusCode(err)
	if status >= 500 {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	Message(c, status, apperror.PublicMessage(err, GenericError), true)
}

// Abort is Error for middleware: the handler chain stops after the write.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}
