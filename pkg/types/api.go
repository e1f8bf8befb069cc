package types

// LoadRequest asks the server to load a model artifact under an id.
type LoadRequest struct {
	// Path to the model directory or zip archive on the server.
	// example: /srv/models/sentiment-en-v2
	Path string `json:"path" example:"/srv/models/sentiment-en-v2"`
	// Optional model type; when empty the manifest's type is used.
	// example: text_classification
	ModelType string `json:"model_type,omitempty" example:"text_classification"`
	// Optional backend kind override for this load.
	// example: MOCK
	Backend string `json:"backend,omitempty" example:"MOCK"`
}

// PredictRequest carries the structural input payload for one inference
// call. The schema of the payload is owned by the model type.
type PredictRequest struct {
	// Inference inputs as a JSON object.
	Inputs map[string]any `json:"inputs"`
}

// PredictResponse carries the structural output payload of one call.
type PredictResponse struct {
	// Inference outputs as a JSON object.
	Outputs map[string]any `json:"outputs"`
}

// ModelsResponse wraps the list of loaded models returned by GET /models.
type ModelsResponse struct {
	// Currently loaded models.
	Models []ModelInfo `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model sentiment-en-v2 is not loaded
	Error string `json:"error" example:"model sentiment-en-v2 is not loaded"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// StatusResponse summarizes the runtime for GET /status.
type StatusResponse struct {
	// Whether the runtime is ready to serve.
	// example: true
	Ready bool `json:"ready" example:"true"`
	// Number of currently loaded models.
	// example: 3
	ModelCount int `json:"model_count" example:"3"`
	// Total sized bytes across loaded models.
	// example: 157286400
	TotalSizeBytes int64 `json:"total_size_bytes" example:"157286400"`
}
