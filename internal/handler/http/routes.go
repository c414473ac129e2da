package http

import "github.com/gin-gonic/gin"

// RegisterRoutes 把 REST 接口挂到 api 分组下。
func RegisterRoutes(api gin.IRouter, rooms *RoomHandler, users *UserHandler) {
	api.POST("/users", users.UpsertUser)

	roomRoutes := api.Group("/rooms")
	{
		roomRoutes.POST("", rooms.CreateRoom)
		roomRoutes.GET("/:code", rooms.GetRoom)
		roomRoutes.POST("/:code/join", rooms.JoinRoom)
		roomRoutes.POST("/:code/spend", rooms.Spend)
		roomRoutes.POST("/:code/reclaim", rooms.Reclaim)
		roomRoutes.PATCH("/:code/members/:externalId", rooms.UpdateMember)
	}
}
