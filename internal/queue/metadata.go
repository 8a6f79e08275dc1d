package queue

import "encoding/json"

// Metadata keys produced by the pipeline stages. Later stages read keys
// written by earlier ones, so renaming a key is a breaking change.
const (
	MetaVideoFilePath  = "video_file_path"
	MetaVideoTitle     = "video_title"
	MetaVideoDuration  = "video_duration_seconds"
	MetaAudioFilePath  = "audio_file_path"
	MetaTranscriptPath = "transcript_path"
	MetaLanguage       = "language"
	MetaModel          = "model"
	MetaSegmentCount   = "segment_count"
)

// MergeMetadata merges produced keys into the job's metadata bag. Stages only
// add or overwrite keys; keys written by earlier stages are never deleted. The
// bag is replaced with a fresh copy so callers never alias the stored map.
func (j *Job) MergeMetadata(produced map[string]string) {
	if len(produced) == 0 && j.Metadata != nil {
		return
	}
	merged := make(map[string]string, len(j.Metadata)+len(produced))
	for k, v := range j.Metadata {
		merged[k] = v
	}
	for k, v := range produced {
		merged[k] = v
	}
	j.Metadata = merged
}

// MetadataValue returns the value for key and whether it is present.
func (j *Job) MetadataValue(key string) (string, bool) {
	value, ok := j.Metadata[key]
	return value, ok
}

func marshalMetadata(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMetadata(data string) map[string]string {
	if data == "" {
		return nil
	}
	meta := make(map[string]string)
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil
	}
	return meta
}

func marshalStageProgress(progress map[Stage]int) (string, error) {
	if len(progress) == 0 {
		return "", nil
	}
	data, err := json.Marshal(progress)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalStageProgress(data string) map[Stage]int {
	if data == "" {
		return nil
	}
	progress := make(map[Stage]int)
	if err := json.Unmarshal([]byte(data), &progress); err != nil {
		return nil
	}
	return progress
}
