package public

import (
	handlershared "github.com/dujiao-next/stockledger/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

// 前台令牌中的操作人即购物车所属用户
func getUserID(c *gin.Context) (uint, bool) {
	return handlershared.RequireActorID(c)
}

func parseID(c *gin.Context, name string) (uint, bool) {
	return handlershared.ParseIDParam(c, name)
}

func respondServiceError(c *gin.Context, err error, fallbackMsg string) {
	handlershared.RespondServiceError(c, err, fallbackMsg)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}
