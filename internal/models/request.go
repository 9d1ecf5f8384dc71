package models

type GenerateRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
}

type DeleteProjectRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
}
