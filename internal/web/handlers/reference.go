package handlers

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/facefinder/facefinder/internal/config"
	"github.com/facefinder/facefinder/internal/constants"
	"github.com/facefinder/facefinder/internal/detector"
	"github.com/facefinder/facefinder/internal/face"
)

// ReferenceHandler exposes face extraction for reference images. The caller
// uses the returned indices to pick which faces a later search should match.
type ReferenceHandler struct {
	config   *config.Config
	detector detector.Detector
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(cfg *config.Config, det detector.Detector) *ReferenceHandler {
	return &ReferenceHandler{config: cfg, detector: det}
}

// referenceFace is one detected face in the reference image.
type referenceFace struct {
	Index        int              `json:"index"`
	BBox         face.BoundingBox `json:"bbox"`
	ThumbnailB64 string           `json:"thumbnail_b64"`
}

// referenceResponse lists the faces found in the reference image.
type referenceResponse struct {
	Faces []referenceFace `json:"faces"`
}

// Faces detects faces in an uploaded reference image and returns their
// stable indices, bounding boxes and JPEG thumbnails.
func (h *ReferenceHandler) Faces(w http.ResponseWriter, r *http.Request) {
	data, _, err := readUpload(r, "reference", h.config.Defaults.Images.Extensions, constants.MaxImageUploadMB)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		respondError(w, http.StatusBadRequest, "cannot decode reference image")
		return
	}

	detections, err := h.detector.Detect(r.Context(), data)
	if err != nil {
		respondError(w, http.StatusBadGateway, fmt.Sprintf("face detection failed: %v", err))
		return
	}

	resp := referenceResponse{Faces: []referenceFace{}}
	for idx, det := range detections {
		bounds := img.Bounds()
		box := det.Box.Clip(bounds.Dx(), bounds.Dy())
		thumb, err := cropThumbnail(img, box)
		if err != nil {
			continue
		}
		resp.Faces = append(resp.Faces, referenceFace{
			Index:        idx,
			BBox:         box,
			ThumbnailB64: thumb,
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

// cropThumbnail cuts the face region out of the image and returns it as a
// base64-encoded JPEG.
func cropThumbnail(img image.Image, box face.BoundingBox) (string, error) {
	if !box.Valid() {
		return "", fmt.Errorf("empty face region")
	}

	crop := image.NewRGBA(image.Rect(0, 0, box.Width(), box.Height()))
	src := image.Rect(box.X1, box.Y1, box.X2, box.Y2).Add(img.Bounds().Min)
	draw.Draw(crop, crop.Bounds(), img, src.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, crop, &jpeg.Options{Quality: 85}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
