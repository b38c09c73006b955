package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/axenix_call/internal/api/http/converter"
	"github.com/immxrtalbeast/axenix_call/internal/config"
	"github.com/immxrtalbeast/axenix_call/internal/domain"
	"github.com/immxrtalbeast/axenix_call/internal/service"
)

type RoomController struct {
	rooms  service.RoomReader
	webrtc config.WebRTCConfig
}

func NewRoomController(rooms service.RoomReader, webrtcCfg config.WebRTCConfig) *RoomController {
	return &RoomController{
		rooms:  rooms,
		webrtc: webrtcCfg,
	}
}

func (c *RoomController) GetRoom(ctx *gin.Context) {
	roomID := ctx.Param("roomID")
	if err := domain.ValidateRoomID(roomID); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	snapshot, err := c.rooms.Snapshot(ctx.Request.Context(), roomID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrRoomNotFound) {
			status = http.StatusNotFound
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(snapshot)})
}

func (c *RoomController) GetICEServers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"iceServers": converter.ICEServers(c.webrtc)})
}
