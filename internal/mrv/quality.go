package mrv

import (
	"math"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Categorize sorts an evidence file by MIME type and name.
func Categorize(name, contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return CategoryPhoto
	case strings.Contains(contentType, "csv"),
		strings.Contains(contentType, "json"),
		strings.Contains(contentType, "xml"),
		strings.HasSuffix(name, ".log"),
		strings.HasSuffix(name, ".txt"):
		return CategoryIoTData
	default:
		return CategoryDocument
	}
}

// QualityScore rates a submission's completeness from 0 to 100: 40 points
// for filled-in text fields, 40 for covering each file category and 20 for
// the number of files.
func QualityScore(raw RawData, files []UploadedFile) int {
	fields := []string{raw.SatelliteData, raw.CommunityReports, raw.SensorReadings, raw.IoTData, raw.Notes}
	filled := 0
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 20 {
			filled++
		}
	}
	score := float64(filled) / float64(len(fields)) * 40

	categories := make(map[string]struct{})
	for _, f := range files {
		categories[f.Category] = struct{}{}
	}
	score += float64(len(categories)) / 3 * 40

	switch n := len(files); {
	case n >= 10:
		score += 20
	case n >= 5:
		score += 15
	case n >= 3:
		score += 10
	case n >= 1:
		score += 5
	}
	return int(math.Round(score))
}

// objectKey is where an upload lives in the file store.
func objectKey(projectID string, unixMillis int64, name string) string {
	return projectID + "/" + strconv.FormatInt(unixMillis, 10) + "_" + path.Base(name)
}
