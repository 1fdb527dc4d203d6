package admin

import (
	handlershared "github.com/dujiao-next/stockledger/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getActorID(c *gin.Context) *uint {
	return handlershared.GetActorID(c)
}

func parseID(c *gin.Context, name string) (uint, bool) {
	return handlershared.ParseIDParam(c, name)
}

func normalizePagination(page, pageSize int) (int, int) {
	return handlershared.NormalizePagination(page, pageSize)
}
