package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/fileproc"
)

// maxUploadBytes bounds the in-memory portion of a multipart upload.
const maxUploadBytes = 32 << 20

// handleUploadSentences handles POST /upload/sentences: a batch of
// pre-chunked documents as JSON. The batch is committed atomically.
func (s *Server) handleUploadSentences(w http.ResponseWriter, r *http.Request) {
	var req sentencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperrors.Malformed("request body is not valid JSON"))
		return
	}
	if len(req.Documents) == 0 {
		s.writeError(w, r, apperrors.Malformed("documents must not be empty"))
		return
	}
	for i, doc := range req.Documents {
		if strings.TrimSpace(doc.ID) == "" || strings.TrimSpace(doc.Text) == "" {
			s.writeError(w, r, apperrors.Malformed(
				fmt.Sprintf("document %d: docId and text are required", i)))
			return
		}
	}

	if err := s.pipe.Ingest(r.Context(), req.Documents); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.ingestDocumentsTotal.WithLabelValues("sentences").Add(float64(len(req.Documents)))
	s.writeJSON(w, http.StatusCreated, uploadResponse{Message: uploadSuccessMessage})
}

// handleUploadTextFile handles POST /upload/text-file: a multipart form with
// a text or markdown file, an optional label, and an optional processor kind
// selecting the chunking strategy.
func (s *Server) handleUploadTextFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, apperrors.Malformed("expected a multipart form with a file field"))
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, apperrors.Malformed("file field is required"))
		return
	}
	defer file.Close()

	proc, err := fileproc.New(fileproc.Kind(r.FormValue("processor")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	name := strings.TrimSuffix(hdr.Filename, filepath.Ext(hdr.Filename))
	docs, err := proc.ProcessText(file, name, r.FormValue("label"), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(docs) == 0 {
		s.writeError(w, r, apperrors.Malformed("file contains no text"))
		return
	}

	if err := s.pipe.Ingest(r.Context(), docs); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.ingestDocumentsTotal.WithLabelValues("text").Add(float64(len(docs)))
	s.writeJSON(w, http.StatusCreated, uploadResponse{Message: uploadSuccessMessage})
}

// handleUploadCSVFile handles POST /upload/csv-file: a multipart form with a
// CSV of columns id,text,label,links,medialinks and an optional delimiter
// field ("comma" or "tab").
func (s *Server) handleUploadCSVFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, r, apperrors.Malformed("expected a multipart form with a file field"))
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, apperrors.Malformed("file field is required"))
		return
	}
	defer file.Close()

	var delimiter rune
	switch r.FormValue("delimiter") {
	case "", "comma":
		delimiter = ','
	case "tab":
		delimiter = '\t'
	default:
		s.writeError(w, r, apperrors.Malformed(`delimiter must be "comma" or "tab"`))
		return
	}

	docs, err := fileproc.ProcessCSV(file, delimiter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(docs) == 0 {
		s.writeError(w, r, apperrors.Malformed("file contains no rows"))
		return
	}

	if err := s.pipe.Ingest(r.Context(), docs); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.ingestDocumentsTotal.WithLabelValues("csv").Add(float64(len(docs)))
	s.writeJSON(w, http.StatusCreated, uploadResponse{Message: uploadSuccessMessage})
}
