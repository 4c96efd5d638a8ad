// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backend

// Workspace is one entry in Profile.Workspaces.
type Workspace struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPersonal bool   `json:"isPersonal,omitempty"`
}

// Profile is the response body of GET /api/profile.
type Profile struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	WorkspaceID string      `json:"workspaceId,omitempty"`
	Workspaces  []Workspace `json:"workspaces"`
}

// TunnelToken is the response body of GET /api/tunnel/token: the
// reverse-tunnel gateway credentials and per-account subdomain host.
type TunnelToken struct {
	Token          string `json:"token"`
	ServerAddr     string `json:"serverAddr"`
	ServerPort     int    `json:"serverPort"`
	SubdomainHost  string `json:"subdomainHost"`
	PublicHTTPPort int    `json:"publicHttpPort"`
}

// TaskRecord is the upsert body for POST /api/tasks and one element of
// ActiveTasksResponse.ActiveTasks.
type TaskRecord struct {
	ID          string  `json:"id"`
	Tool        string  `json:"tool"`
	Model       string  `json:"model,omitempty"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Credits     float64 `json:"credits"`
	CreatedAt   string  `json:"createdAt"`
	CompletedAt string  `json:"completedAt,omitempty"`
	ProviderID  string  `json:"providerId,omitempty"`
	Summary     string  `json:"summary,omitempty"`
}

// ActiveTasksResponse is the response body of GET /api/tasks/active.
type ActiveTasksResponse struct {
	HasActiveTasks bool         `json:"hasActiveTasks"`
	ActiveTasks    []TaskRecord `json:"activeTasks"`
}

// Task status values used in TaskRecord.Status.
const (
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)
