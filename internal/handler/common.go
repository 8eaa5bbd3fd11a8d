package handler

import (
	"net/http"

	"go-gin-bus-reservation/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const recorderKey = "notifications"

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         "Invalid request format",
			"notifications": notifications(c),
		})
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         "Invalid request format",
			"notifications": notifications(c),
		})
		return err
	}
	return nil
}

func BindUri(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindUri(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         "Invalid reservation id",
			"notifications": notifications(c),
		})
		return err
	}
	return nil
}

type sessionURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// BindSessionID 解析路徑上的 session id
func BindSessionID(c *gin.Context) (uuid.UUID, bool) {
	var uri sessionURI
	if err := BindUri(c, &uri); err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uri.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         "Invalid reservation id",
			"notifications": notifications(c),
		})
		return uuid.Nil, false
	}
	return id, true
}

// Notifications 每個請求掛上自己的 Recorder，服務層送出的通知會隨響應回傳
func Notifications() gin.HandlerFunc {
	return func(c *gin.Context) {
		rec := notify.NewRecorder()
		c.Set(recorderKey, rec)
		c.Request = c.Request.WithContext(notify.WithRecorder(c.Request.Context(), rec))
		c.Next()
	}
}

func notifications(c *gin.Context) []notify.Entry {
	if v, ok := c.Get(recorderKey); ok {
		if rec, ok := v.(*notify.Recorder); ok {
			return rec.Entries()
		}
	}
	return []notify.Entry{}
}
