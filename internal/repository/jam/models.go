package jam

const defaultVolume = 0.8

// State is the authoritative shared playback clock and controls for a
// room. Exactly one State exists per room; it is created lazily on
// first reference and never deleted.
type State struct {
	Id          string  `json:"id"`
	CurrentTime float64 `json:"current_time"`
	Playing     bool    `json:"playing"`
	Volume      float64 `json:"volume"`
	VocalOn     bool    `json:"vocal_on"`
	IsOn        bool    `json:"is_on"`
	QueueIdx    *int    `json:"queue_idx"`
}

// Patch is a partial update. A nil field leaves the stored value
// untouched; it never resets anything to a default.
type Patch struct {
	CurrentTime *float64 `json:"current_time"`
	Playing     *bool    `json:"playing"`
	Volume      *float64 `json:"volume"`
	VocalOn     *bool    `json:"vocal_on"`
	IsOn        *bool    `json:"is_on"`
	QueueIdx    *int     `json:"queue_idx"`
}

// Default returns the state a room starts with.
func Default(roomId string) State {
	return State{
		Id:     roomId,
		Volume: defaultVolume,
	}
}

// Merge applies patch on top of state, field by field.
func Merge(state State, patch Patch) State {
	if patch.CurrentTime != nil {
		state.CurrentTime = *patch.CurrentTime
	}
	if patch.Playing != nil {
		state.Playing = *patch.Playing
	}
	if patch.Volume != nil {
		state.Volume = *patch.Volume
	}
	if patch.VocalOn != nil {
		state.VocalOn = *patch.VocalOn
	}
	if patch.IsOn != nil {
		state.IsOn = *patch.IsOn
	}
	if patch.QueueIdx != nil {
		idx := *patch.QueueIdx
		state.QueueIdx = &idx
	}

	return state
}
