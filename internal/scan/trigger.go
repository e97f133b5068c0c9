package scan

import (
	"fmt"
	"strings"
	"time"
)

// imageNamespace is the storage prefix that marks an upload as a scan image.
// Uploads outside it are not scans and are ignored by the ingestion trigger.
const imageNamespace = "scan_images"

// uploadRef identifies a scan upload parsed from its storage path.
type uploadRef struct {
	ownerID string
	scanID  string
}

// parseUploadPath matches the scan-image path convention
// "scan_images/<ownerId>/<fileName>", where the file name carries the scan id
// as its "_"-separated prefix. ok is false for paths outside the convention,
// including paths with too few segments.
func parseUploadPath(path string) (uploadRef, bool) {
	parts := strings.Split(path, "/")
	if len(parts) < 3 || parts[0] != imageNamespace {
		return uploadRef{}, false
	}

	ref := uploadRef{
		ownerID: parts[1],
		scanID:  strings.SplitN(parts[2], "_", 2)[0],
	}
	if ref.ownerID == "" || ref.scanID == "" {
		return uploadRef{}, false
	}
	return ref, true
}

// uploadPath builds the storage path for a new scan image, matching what
// parseUploadPath expects. ext includes the leading dot.
func uploadPath(ownerID, scanID string, now time.Time, ext string) string {
	return fmt.Sprintf("%s/%s/%s_%d%s", imageNamespace, ownerID, scanID, now.UnixMilli(), ext)
}
