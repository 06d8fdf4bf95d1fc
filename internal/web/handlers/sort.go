package handlers

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kozaktomas/face-sorter/internal/classifier"
	"github.com/kozaktomas/face-sorter/internal/config"
	"github.com/kozaktomas/face-sorter/internal/constants"
	"github.com/kozaktomas/face-sorter/internal/sorter"
	"github.com/kozaktomas/face-sorter/internal/workspace"
)

// errModelMissing is the user-facing message for the absent artifact pair.
const errModelMissing = "model files missing in models/"

// SortHandler handles the sort endpoint.
type SortHandler struct {
	config     *config.Config
	workspaces *workspace.Manager
	detector   sorter.FaceDetector
	classifier *classifier.Classifier // nil when artifacts are missing
}

// NewSortHandler creates a new sort handler. A nil classifier is allowed;
// sort requests then fail with a configuration error, matching the
// behavior of artifacts that went missing on disk.
func NewSortHandler(cfg *config.Config, ws *workspace.Manager, detector sorter.FaceDetector, cls *classifier.Classifier) *SortHandler {
	return &SortHandler{
		config:     cfg,
		workspaces: ws,
		detector:   detector,
		classifier: cls,
	}
}

// SortResponse is the summary returned for a completed sort request.
type SortResponse struct {
	RunID           string  `json:"run_id"`
	TotalScanned    int     `json:"total_scanned"`
	MatchedCount    int     `json:"matched_count"`
	NotMatchedCount int     `json:"not_matched_count"`
	TargetLabel     string  `json:"target_label"`
	TargetScore     float64 `json:"target_score"`

	MatchedZipURL    string `json:"matched_zip_url"`
	NotMatchedZipURL string `json:"not_matched_zip_url"`

	MatchedPreviewURLs    []string `json:"matched_preview_urls"`
	NotMatchedPreviewURLs []string `json:"not_matched_preview_urls"`
}

// Sort accepts a target face photo plus candidate images and partitions
// the candidates into matched and not_matched buckets.
func (h *SortHandler) Sort(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	target, _, err := r.FormFile("target")
	if err != nil {
		respondError(w, http.StatusBadRequest, "target file is required")
		return
	}
	defer target.Close()

	images := r.MultipartForm.File["images"]
	if len(images) == 0 {
		respondError(w, http.StatusBadRequest, "at least one candidate image is required")
		return
	}

	if h.classifier == nil {
		respondError(w, http.StatusInternalServerError, errModelMissing)
		return
	}

	opts := h.parseOptions(r)

	run, err := h.workspaces.CreateRun()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create run workspace")
		return
	}

	if err := run.StoreTarget(target); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store target file")
		return
	}

	if err := storeCandidates(run, images); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s := sorter.New(h.detector, h.classifier)
	result, err := s.Sort(r.Context(), run, opts)
	if err != nil {
		log.Printf("sort run %s failed: %v", run.ID, err)
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("sorting failed: %v", err))
		return
	}

	for _, bucket := range []workspace.Bucket{workspace.BucketMatched, workspace.BucketNotMatched} {
		if _, err := run.Archive(bucket); err != nil {
			log.Printf("sort run %s: archiving %s failed: %v", run.ID, bucket, err)
			respondError(w, http.StatusInternalServerError, fmt.Sprintf("archiving %s failed", bucket))
			return
		}
	}

	resp, err := h.buildResponse(run, result)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to build result summary")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// parseOptions reads mode, detector and threshold from the form, falling
// back to configured defaults.
func (h *SortHandler) parseOptions(r *http.Request) sorter.Options {
	opts := sorter.Options{
		Mode:                h.config.Sort.Mode,
		Detector:            h.config.Sort.Detector,
		SimilarityThreshold: h.config.Sort.SimilarityThreshold,
	}

	if mode := r.FormValue("mode"); mode != "" {
		opts.Mode = mode
	}
	if detector := r.FormValue("detector"); detector != "" {
		opts.Detector = detector
	}
	if raw := r.FormValue("similarity_threshold"); raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			opts.SimilarityThreshold = f
		}
	}
	return opts
}

// storeCandidates writes the uploaded candidate files into the run's input
// collection under normalized names.
func storeCandidates(run *workspace.Run, files []*multipart.FileHeader) error {
	for _, fileHeader := range files {
		if err := func() error {
			file, err := fileHeader.Open()
			if err != nil {
				return fmt.Errorf("failed to open upload %s", sanitizeForLog(fileHeader.Filename))
			}
			defer file.Close()

			if _, err := run.StoreInput(fileHeader.Filename, file); err != nil {
				return fmt.Errorf("failed to store upload %s", sanitizeForLog(fileHeader.Filename))
			}
			return nil
		}(); err != nil {
			return err
		}
	}
	return nil
}

// buildResponse assembles the summary: counts, zip links and the first
// previews of each bucket.
func (h *SortHandler) buildResponse(run *workspace.Run, result *sorter.Result) (*SortResponse, error) {
	matchedPreviews, err := h.previewURLs(run, workspace.BucketMatched)
	if err != nil {
		return nil, err
	}
	notMatchedPreviews, err := h.previewURLs(run, workspace.BucketNotMatched)
	if err != nil {
		return nil, err
	}

	base := h.config.Server.BaseURL
	return &SortResponse{
		RunID:           run.ID,
		TotalScanned:    result.TotalScanned,
		MatchedCount:    result.MatchedCount,
		NotMatchedCount: result.NotMatchedCount,
		TargetLabel:     result.TargetLabel,
		TargetScore:     result.TargetScore,

		MatchedZipURL:    fmt.Sprintf("%s/download/%s/%s", base, run.ID, workspace.BucketMatched),
		NotMatchedZipURL: fmt.Sprintf("%s/download/%s/%s", base, run.ID, workspace.BucketNotMatched),

		MatchedPreviewURLs:    matchedPreviews,
		NotMatchedPreviewURLs: notMatchedPreviews,
	}, nil
}

// previewURLs maps the first bucket filenames (lexicographic order) to
// retrieval URLs.
func (h *SortHandler) previewURLs(run *workspace.Run, bucket workspace.Bucket) ([]string, error) {
	names, err := run.ListBucket(bucket)
	if err != nil {
		return nil, err
	}
	if len(names) > constants.PreviewLimit {
		names = names[:constants.PreviewLimit]
	}

	urls := make([]string, 0, len(names))
	for _, name := range names {
		urls = append(urls, fmt.Sprintf("%s/runs/%s/%s/%s",
			h.config.Server.BaseURL, run.ID, bucket, url.PathEscape(name)))
	}
	return urls, nil
}
