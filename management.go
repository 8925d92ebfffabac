package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Gimmick12-DYY/ADRD-KG/models"
	"github.com/Gimmick12-DYY/ADRD-KG/pkg/fileparse"
	"github.com/Gimmick12-DYY/ADRD-KG/pkg/ingest"
)

// Approve responses surface at most this many row errors.
const maxReportedErrors = 10

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func loginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Username and password required",
		})
		return
	}
	admin, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Invalid credentials",
		})
		return
	}
	token, err := issueToken(admin.Username)
	if err != nil {
		slog.Error("token issue failed", "username", admin.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Could not create session",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Login successful",
		"username": admin.Username,
		"token":    token,
	})
}

func logoutHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out successfully",
	})
}

func checkAuthHandler(c *gin.Context) {
	username, ok := bearerUsername(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"username":      username,
	})
}

func bearerUsername(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	username, err := parseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return "", false
	}
	return username, true
}

// reviewerContext records the caller identity for review attribution. The
// token is optional; the dashboard keeps its session client-side.
func reviewerContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if u, ok := bearerUsername(c); ok {
			c.Set("reviewer", u)
		}
		c.Next()
	}
}

func uploadSummary(u *models.PendingUpload) gin.H {
	var reviewedAt *string
	if u.ReviewedAt != nil {
		s := u.ReviewedAt.Format(timeLayout)
		reviewedAt = &s
	}
	return gin.H{
		"id":           u.ID,
		"file_name":    u.FileName,
		"file_type":    u.FileType,
		"uploaded_by":  u.UploadedBy,
		"status":       u.Status,
		"review_notes": u.ReviewNotes,
		"reviewed_by":  u.ReviewedBy,
		"created_at":   u.CreatedAt.Format(timeLayout),
		"reviewed_at":  reviewedAt,
	}
}

func listPendingHandler(c *gin.Context) {
	status := c.DefaultQuery("status", models.StatusPending)
	switch status {
	case models.StatusPending, models.StatusApproved, models.StatusRejected, "all":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	q := db.Model(&models.PendingUpload{})
	if status != "all" {
		q = q.Where("status = ?", status)
	}
	var uploads []models.PendingUpload
	if err := q.Order("created_at desc").Find(&uploads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	summaries := make([]gin.H, 0, len(uploads))
	for i := range uploads {
		summaries = append(summaries, uploadSummary(&uploads[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"uploads":       summaries,
		"total":         len(summaries),
		"status_filter": status,
	})
}

func pendingDetailHandler(c *gin.Context) {
	var upload models.PendingUpload
	if err := db.First(&upload, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return
	}
	detail := uploadSummary(&upload)
	detail["file_content"] = upload.Rows()
	c.JSON(http.StatusOK, detail)
}

type reviewRequest struct {
	Notes      string `json:"review_notes"`
	ReviewedBy string `json:"reviewed_by"`
}

// reviewerName prefers the token identity, then the request body, then the
// default account.
func reviewerName(c *gin.Context, body *reviewRequest) string {
	if u := c.GetString("reviewer"); u != "" {
		return u
	}
	if body.ReviewedBy != "" {
		return body.ReviewedBy
	}
	return "admin"
}

// approveUploadHandler ingests the upload's rows and marks it approved. Only
// pending records are eligible; the status flips even when some rows fail,
// with per-row errors reported back to the reviewer.
func approveUploadHandler(c *gin.Context) {
	var upload models.PendingUpload
	if err := db.Where("status = ?", models.StatusPending).First(&upload, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return
	}

	rows := upload.Rows()
	if len(rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No data found in file"})
		return
	}

	res := ingest.Rows(db, rows)

	var notes reviewRequest
	_ = c.ShouldBindJSON(&notes)
	now := time.Now()
	reviewer := reviewerName(c, &notes)
	update := map[string]any{
		"status":       models.StatusApproved,
		"review_notes": notes.Notes,
		"reviewed_by":  reviewer,
		"reviewed_at":  &now,
	}
	// the status predicate on the update makes the transition single-fire
	// under racing reviewers; the loser sees the record as already decided
	tx := db.Model(&upload).Where("status = ?", models.StatusPending).Updates(update)
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update upload"})
		return
	}
	if tx.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return
	}

	message := fmt.Sprintf("Successfully added %d dataset(s) to the database.", res.AddedCount)
	if res.ErrorCount > 0 {
		message += fmt.Sprintf(" %d row(s) had errors.", res.ErrorCount)
	}
	reported := res.Errors
	if len(reported) > maxReportedErrors {
		reported = reported[:maxReportedErrors]
	}
	slog.Info("upload approved",
		"upload_id", upload.ID,
		"added", res.AddedCount,
		"errors", res.ErrorCount,
		"reviewer", reviewer)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     message,
		"added_count": res.AddedCount,
		"error_count": res.ErrorCount,
		"errors":      reported,
	})
}

func rejectUploadHandler(c *gin.Context) {
	var upload models.PendingUpload
	if err := db.Where("status = ?", models.StatusPending).First(&upload, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return
	}

	var notes reviewRequest
	_ = c.ShouldBindJSON(&notes)
	now := time.Now()
	reviewer := reviewerName(c, &notes)
	update := map[string]any{
		"status":       models.StatusRejected,
		"review_notes": notes.Notes,
		"reviewed_by":  reviewer,
		"reviewed_at":  &now,
	}
	tx := db.Model(&upload).Where("status = ?", models.StatusPending).Updates(update)
	if tx.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update upload"})
		return
	}
	if tx.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Upload not found"})
		return
	}
	slog.Info("upload rejected", "upload_id", upload.ID, "reviewer", reviewer)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Upload rejected",
	})
}

type uploadRequest struct {
	FileName    string `json:"file_name"`
	FileContent string `json:"file_content"`
	FileType    string `json:"file_type"`
	UploadedBy  string `json:"uploaded_by"`
}

func submitUploadHandler(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FileName == "" || req.FileContent == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File name and content required"})
		return
	}
	fileType := req.FileType
	if fileType == "" {
		fileType = "csv"
	}

	rows, err := fileparse.Parse(fileType, req.FileContent)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error parsing file: " + err.Error()})
		return
	}

	content, err := json.Marshal(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not store file content"})
		return
	}
	upload := models.PendingUpload{
		FileName:    req.FileName,
		FileType:    fileType,
		FileContent: content,
		UploadedBy:  req.UploadedBy,
		Status:      models.StatusPending,
	}
	if err := db.Create(&upload).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not store upload"})
		return
	}
	slog.Info("upload submitted", "upload_id", upload.ID, "file_name", upload.FileName, "rows", len(rows))
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "File uploaded successfully and pending review",
		"upload_id": upload.ID,
	})
}
