package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonMicPermission ReasonCode = "mic_permission"
	ReasonVADModelInit  ReasonCode = "vad_model_init"

	ReasonAudioUnavailable ReasonCode = "audio_unavailable"
	ReasonPlaybackDecode   ReasonCode = "playback_decode"
	ReasonPlaybackDevice   ReasonCode = "playback_device"

	ReasonDispatchSend      ReasonCode = "dispatch_send"
	ReasonDispatchStatus    ReasonCode = "dispatch_status"
	ReasonDispatchMalformed ReasonCode = "dispatch_malformed"

	ReasonStaleResult ReasonCode = "stale_result"
)
