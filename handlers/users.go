package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/include-portal/users-api/internal/models"
	"github.com/include-portal/users-api/internal/storage"
	"github.com/include-portal/users-api/internal/users"
	"github.com/include-portal/users-api/pkg/logger"
	"github.com/include-portal/users-api/pkg/metrics"
	"github.com/include-portal/users-api/pkg/middleware"
)

// ImageStore issues presigned URLs for profile image objects.
type ImageStore interface {
	PresignUpload(ctx context.Context, key string, expires time.Duration) (string, error)
	PresignDownload(ctx context.Context, key string, expires time.Duration) (string, error)
}

// UsersHandler holds dependencies
type UsersHandler struct {
	svc         *users.Service
	images      ImageStore
	imageURLTTL time.Duration
}

// NewUsersHandler builds the handler. images may be nil, in which case the
// profile image routes are not registered.
func NewUsersHandler(svc *users.Service, images ImageStore, imageURLTTL time.Duration) *UsersHandler {
	if imageURLTTL <= 0 {
		imageURLTTL = 15 * time.Minute
	}
	return &UsersHandler{svc: svc, images: images, imageURLTTL: imageURLTTL}
}

// Register routes under /user. The group must already run AuthMiddleware.
func (h *UsersHandler) Register(rg *gin.RouterGroup) {
	u := rg.Group("/user")
	u.GET("", h.Get)
	u.POST("", h.Create)
	u.PUT("", h.Update)
	u.DELETE("", h.Delete)
	u.PUT("/complete-registration", h.CompleteRegistration)
	if h.images != nil {
		u.POST("/profile-image", h.CreateProfileImageURL)
		u.GET("/profile-image", h.GetProfileImageURL)
	}
}

func (h *UsersHandler) Get(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	done := observe("get")
	u, err := h.svc.GetUser(c.Request.Context(), sub)
	done(err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UsersHandler) Create(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	attrs, ok := bindAttributes(c, "create")
	if !ok {
		return
	}
	done := observe("create")
	u, err := h.svc.CreateUser(c.Request.Context(), sub, attrs)
	done(err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *UsersHandler) Update(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	attrs, ok := bindAttributes(c, "update")
	if !ok {
		return
	}
	done := observe("update")
	u, err := h.svc.UpdateUser(c.Request.Context(), sub, attrs)
	done(err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// CompleteRegistration applies the attributes and marks the registration
// as completed in the same write.
func (h *UsersHandler) CompleteRegistration(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	attrs, ok := bindAttributes(c, "complete_registration")
	if !ok {
		return
	}
	done := observe("complete_registration")
	u, err := h.svc.CompleteRegistration(c.Request.Context(), sub, attrs)
	done(err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UsersHandler) Delete(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	done := observe("delete")
	err := h.svc.DeleteUser(c.Request.Context(), sub)
	done(err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keycloak_id": sub, "deleted": true})
}

// CreateProfileImageURL allocates a new object key for the caller's profile
// image, records it and returns a presigned upload URL.
func (h *UsersHandler) CreateProfileImageURL(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	done := observe("profile_image")
	key := storage.ProfileImageKey(sub)
	url, err := h.images.PresignUpload(c.Request.Context(), key, h.imageURLTTL)
	if err == nil {
		_, err = h.svc.SetProfileImageKey(c.Request.Context(), sub, key)
	}
	done(err)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "key": key, "expires_in": int(h.imageURLTTL.Seconds())})
}

// GetProfileImageURL returns a presigned download URL for the stored image.
func (h *UsersHandler) GetProfileImageURL(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}
	u, err := h.svc.GetUser(c.Request.Context(), sub)
	if err != nil {
		writeError(c, err)
		return
	}
	if u.ProfileImageKey == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no profile image"})
		return
	}
	url, err := h.images.PresignDownload(c.Request.Context(), *u.ProfileImageKey, h.imageURLTTL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int(h.imageURLTTL.Seconds())})
}

func subject(c *gin.Context) (string, bool) {
	sub, ok := middleware.SubjectFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	}
	return sub, ok
}

// bindAttributes decodes the request body. Decode failures are counted under
// operation and answered with 400.
func bindAttributes(c *gin.Context, operation string) (*models.Attributes, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return nil, false
	}
	attrs, err := models.DecodeAttributes(body)
	if err != nil {
		metrics.UserOperations.WithLabelValues(operation, string(users.KindValidation)).Inc()
		writeError(c, err)
		return nil, false
	}
	return attrs, true
}

// observe starts timing operation; the returned func records its outcome.
func observe(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		metrics.UserOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
		outcome := "ok"
		if err != nil {
			outcome = string(users.KindOf(err))
		}
		metrics.UserOperations.WithLabelValues(operation, outcome).Inc()
	}
}

func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if fe, ok := models.AsFieldError(err); ok {
		body["field"] = fe.Field
		body["code"] = fe.Code
	}
	switch users.KindOf(err) {
	case users.KindValidation:
		c.JSON(http.StatusBadRequest, body)
	case users.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case users.KindAlreadyExists:
		c.JSON(http.StatusConflict, body)
	default:
		if errors.Is(err, users.ErrConcurrentUpdate) {
			c.JSON(http.StatusConflict, body)
			return
		}
		logger.Errorw("user operation failed", "path", c.FullPath(), "method", c.Request.Method, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
