package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vivekcuts/vivekcuts-backend/internal/services"
)

func ListOrders(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		overview, err := orders.Overview(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, overview)
	}
}

func ResendOrderLink(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, err := orders.ResendLink(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Download link re-sent", "downloadLink": link})
	}
}

func FailedEmails(orders *services.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		logs, err := orders.FailedEmails(c.Request.Context(), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"email_logs": logs})
	}
}
