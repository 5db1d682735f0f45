package models

// ClusterSummary describes one document group.
type ClusterSummary struct {
	ID   uint64 `json:"id"`
	Size uint32 `json:"size"`
	// Representative is the member whose embedding is closest to the centroid.
	Representative string `json:"representative,omitempty"`
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Documents        int    `json:"documents"`
	Clusters         int    `json:"clusters"`
	NextInternalID   uint64 `json:"next_internal_id"`
	Dimensions       int    `json:"dimensions"`
	RetrainRunning   bool   `json:"retrain_running"`
	Retrains         uint64 `json:"retrains"`
	RetrainFailures  uint64 `json:"retrain_failures"`
	SnapshotSaves    uint64 `json:"snapshot_saves"`
	SnapshotFailures uint64 `json:"snapshot_failures"`
}
