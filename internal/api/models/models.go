package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Webhook models
type TriggerRequestData struct {
	_      struct{} `json:"-" additionalProperties:"true"`
	Name   string   `json:"name,omitempty" example:"Front Door" doc:"Doorbell name"`
	Secret string   `json:"secret,omitempty" doc:"Shared webhook secret"`
}

type TriggerRequest struct {
	Kind string `path:"kind" enum:"button,motion" example:"button" doc:"Trigger kind"`
	Body TriggerRequestData
}

type TriggerData struct {
	Matched  int `json:"matched" example:"1" doc:"Doorbells with the requested name"`
	Accepted int `json:"accepted" example:"1" doc:"Doorbells that accepted the trigger"`
}

type TriggerResponse struct {
	Body TriggerData
}

// Doorbell models
type DoorbellStatus struct {
	Name           string `json:"name" example:"Front Door" doc:"Doorbell name"`
	MotionDetected bool   `json:"motion_detected" doc:"Motion reported within the last few seconds"`
	ActivityID     string `json:"activity_id,omitempty" doc:"Activity pinned for replay"`
	MaxHeight      int    `json:"max_height,omitempty" example:"1080" doc:"Maximum video height from the doorbell's settings"`
	LastTrigger    string `json:"last_trigger,omitempty" example:"2025-01-27T10:30:00Z" doc:"Time of the last accepted trigger"`
}

type DoorbellListData struct {
	Doorbells []DoorbellStatus `json:"doorbells" doc:"Configured doorbells"`
	Count     int              `json:"count" example:"1" doc:"Number of doorbells"`
}

type DoorbellListResponse struct {
	Body DoorbellListData
}
