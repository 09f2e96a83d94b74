package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"

	"github.com/suqaba/suqaba-cli/internal/models"
)

// encodeSimulationForm builds the multipart body for POST /simulations.
// The body is buffered so the request can be replayed on a server-directed retry.
func encodeSimulationForm(form models.SimulationForm) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := []struct{ key, value string }{
		{"name", form.Name},
		{"description", form.Description},
		{"analysisType", string(form.AnalysisType)},
		{"errorThreshold", strconv.FormatFloat(form.ErrorThreshold, 'f', -1, 64)},
		{"materials", form.Materials},
		{"boundaryConditions", form.BoundaryConditions},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.key, f.value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f.key, err)
		}
	}

	if form.GeometryPath != "" {
		f, err := os.Open(form.GeometryPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open geometry file: %w", err)
		}
		defer f.Close()

		part, err := mw.CreateFormFile("geometry", filepath.Base(form.GeometryPath))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create geometry part: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, "", fmt.Errorf("failed to read geometry file: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return buf.Bytes(), mw.FormDataContentType(), nil
}
