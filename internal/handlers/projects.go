package handlers

import (
	"log"
	"net/http"
	"net/url"
	"path"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imagemorph-backend/internal/models"
)

type ProjectsHandler struct {
	dbClient      ProjectStore
	storageClient ObjectStore
	inputBucket   string
	outputBucket  string
}

func NewProjectsHandler(dbClient ProjectStore, storageClient ObjectStore, inputBucket, outputBucket string) *ProjectsHandler {
	return &ProjectsHandler{
		dbClient:      dbClient,
		storageClient: storageClient,
		inputBucket:   inputBucket,
		outputBucket:  outputBucket,
	}
}

func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projects, err := h.dbClient.ListProjects(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list projects",
			Message: err.Error(),
		})
		return
	}

	summaries := make([]models.ProjectSummary, len(projects))
	for i, p := range projects {
		summaries[i] = models.ProjectSummary{
			ID:            p.ID.String(),
			Prompt:        p.Prompt,
			Status:        p.Status,
			PaymentStatus: p.PaymentStatus,
			CreatedAt:     p.CreatedAt,
		}
		if p.OutputImageURL.Valid {
			summaries[i].OutputImageURL = p.OutputImageURL.String
		}
	}

	c.JSON(http.StatusOK, models.ProjectListResponse{Projects: summaries})
}

func (h *ProjectsHandler) GetProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return
	}

	project, err := h.dbClient.GetProject(projectID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
		return
	}

	response := models.ProjectResponse{
		ID:                 project.ID.String(),
		InputImageURL:      project.InputImageURL,
		Prompt:             project.Prompt,
		Status:             project.Status,
		PaymentStatus:      project.PaymentStatus,
		PaymentAmountCents: project.PaymentAmountCents,
		CreatedAt:          project.CreatedAt,
		UpdatedAt:          project.UpdatedAt,
	}
	if project.OutputImageURL.Valid {
		response.OutputImageURL = project.OutputImageURL.String
	}

	c.JSON(http.StatusOK, response)
}

// DeleteProject removes the project row and both associated blobs. Blob
// deletion is best-effort; the row is the authoritative record.
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.DeleteProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing projectId"})
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return
	}

	project, err := h.dbClient.GetProject(projectID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
		return
	}

	if name := objectName(project.InputImageURL); name != "" {
		if err := h.storageClient.Delete(h.inputBucket, name); err != nil {
			log.Printf("failed to delete input blob for project %s: %v", projectID, err)
		}
	}
	if project.OutputImageURL.Valid {
		if name := objectName(project.OutputImageURL.String); name != "" {
			if err := h.storageClient.Delete(h.outputBucket, name); err != nil {
				log.Printf("failed to delete output blob for project %s: %v", projectID, err)
			}
		}
	}

	if err := h.dbClient.DeleteProject(projectID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to delete project",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, models.DeleteResponse{Success: true})
}

// objectName recovers the stored object name from a public URL.
func objectName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
