package types

// ModelInfo describes a loaded model instance.
type ModelInfo struct {
	// Caller-supplied identifier of the loaded instance.
	// example: sentiment-en-v2
	ID string `json:"id" example:"sentiment-en-v2"`
	// Declared model type used for backend and batching policy lookup.
	// example: text_classification
	ModelType string `json:"model_type" example:"text_classification"`
	// Source path the model was loaded from (directory or archive).
	// example: /srv/models/sentiment-en-v2
	Path string `json:"path" example:"/srv/models/sentiment-en-v2"`
	// Backend kind serving this instance.
	// example: LOCAL
	Backend string `json:"backend" example:"LOCAL"`
	// On-disk size of the model artifact in bytes. Zero until sized.
	// example: 52428800
	SizeBytes int64 `json:"size_bytes" example:"52428800"`
	// Whether concurrent calls to this instance are batched.
	// example: true
	Batched bool `json:"batched" example:"true"`
}
