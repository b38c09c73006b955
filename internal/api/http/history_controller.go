package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/axenix_call/internal/repository"
	"github.com/immxrtalbeast/axenix_call/internal/service"
)

type HistoryController struct {
	history service.HistoryReader
}

func NewHistoryController(history service.HistoryReader) *HistoryController {
	return &HistoryController{history: history}
}

func (c *HistoryController) ListCalls(ctx *gin.Context) {
	limit := service.DefaultHistoryLimit
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := c.history.List(ctx.Request.Context(), ctx.Param("userID"), limit)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repository.ErrInvalidUserID) {
			status = http.StatusBadRequest
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"calls": records})
}
