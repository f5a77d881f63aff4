package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"roommatch/models"
	"roommatch/store"
	"roommatch/survey"
)

const maxPhotoBytes = 10 << 20

// SubmitSurvey validates a completed survey and stores it as the viewer's
// profile. Resubmitting keeps the photo and the original creation time.
func SubmitSurvey(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	var sub survey.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := survey.Validate(sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile := sub.Profile(viewer, time.Now().UnixMilli())
	status := http.StatusCreated
	existing, err := eng.Profiles().Get(ctx, viewer)
	switch {
	case err == nil:
		profile.ImageRef = existing.ImageRef
		profile.Coordinates = existing.Coordinates
		if existing.CreatedAt > 0 {
			profile.CreatedAt = existing.CreatedAt
		}
		status = http.StatusOK
	case !errors.Is(err, store.ErrNotFound):
		storeError(c, err, "Profile not found")
		return
	}

	if err := eng.Profiles().Put(ctx, profile); err != nil {
		storeError(c, err, "Profile not found")
		return
	}
	logger.Info(ctx, "[SubmitSurvey] profile stored", "profileId", viewer, "answers", len(profile.Answers))
	c.JSON(status, profile)
}

// GetMyProfile returns the viewer's own profile.
func GetMyProfile(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := eng.Profiles().Get(ctx, viewer)
	if err != nil {
		storeError(c, err, "Profile not found")
		return
	}
	c.JSON(http.StatusOK, profile)
}

type profileUpdate struct {
	Name            *string `json:"name"`
	Age             *int    `json:"age"`
	Location        *string `json:"location"`
	Major           *string `json:"major"`
	InstagramHandle *string `json:"instagramHandle"`
}

// UpdateMyProfile edits the free-form fields. Answers only change through
// SubmitSurvey so the base score stays consistent with them.
func UpdateMyProfile(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}

	var req profileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := eng.Profiles().Get(ctx, viewer)
	if err != nil {
		storeError(c, err, "Profile not found")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": survey.ErrInvalidName.Error()})
			return
		}
		profile.Name = name
	}
	if req.Age != nil {
		if *req.Age < survey.MinAge || *req.Age > survey.MaxAge {
			c.JSON(http.StatusBadRequest, gin.H{"error": survey.ErrInvalidAge.Error()})
			return
		}
		profile.Age = *req.Age
	}
	if req.Location != nil {
		location := strings.TrimSpace(*req.Location)
		if location != profile.Location {
			profile.Coordinates = nil
		}
		profile.Location = location
	}
	if req.Major != nil {
		profile.Major = strings.TrimSpace(*req.Major)
	}
	if req.InstagramHandle != nil {
		profile.InstagramHandle = strings.TrimPrefix(strings.TrimSpace(*req.InstagramHandle), "@")
	}

	if err := eng.Profiles().Put(ctx, profile); err != nil {
		storeError(c, err, "Profile not found")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetUser returns another user's profile.
func GetUser(c *gin.Context) {
	if _, ok := viewerID(c); !ok {
		return
	}
	id := c.Param("id")
	if strings.HasPrefix(id, models.PlaceholderPrefix) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := eng.Profiles().Get(ctx, id)
	if err != nil {
		storeError(c, err, "User not found")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UploadPhoto stores the "photo" form file and points the viewer's
// imageRef at it.
func UploadPhoto(c *gin.Context) {
	viewer, ok := viewerID(c)
	if !ok {
		return
	}
	if imageUploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Photo uploads are not configured"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBytes)
	header, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No photo file provided"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read photo"})
		return
	}
	defer file.Close()

	ctx, cancel := requestContext(c)
	defer cancel()

	profile, err := eng.Profiles().Get(ctx, viewer)
	if err != nil {
		storeError(c, err, "Complete the survey before uploading a photo")
		return
	}

	url, err := imageUploader.Upload(ctx, file, viewer)
	if err != nil {
		logger.Error(ctx, "[UploadPhoto] upload failed", "profileId", viewer, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to upload photo"})
		return
	}

	profile.ImageRef = url
	if err := eng.Profiles().Put(ctx, profile); err != nil {
		storeError(c, err, "Profile not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
