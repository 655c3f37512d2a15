package featureflag

type Flag string

const (
	FlagLogQuadRequests       Flag = "LOG_QUAD_REQUESTS"
	FlagLogGpuUpdates         Flag = "LOG_GPU_UPDATES"
	FlagDisableTileFetchCache Flag = "DISABLE_TILE_FETCH_CACHE"
)
