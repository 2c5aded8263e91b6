package leonardo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// CreateDataset creates an empty dataset and returns its id.
func (c *Client) CreateDataset(ctx context.Context, spec DatasetSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("leonardo: dataset name required")
	}
	var out createDatasetResponse
	err := c.do(ctx, call{
		op:     "datasets.create",
		method: http.MethodPost,
		path:   "/datasets",
		body:   createDatasetBody{Name: spec.Name, Description: spec.Description, SeedImageID: spec.SeedImageID},
		out:    &out,
	})
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(out.DatasetID)
	if id == "" && out.InsertDatasetsOne != nil {
		id = strings.TrimSpace(out.InsertDatasetsOne.ID)
	}
	if id == "" {
		return "", &ServiceError{Op: "datasets.create", Method: http.MethodPost, Path: "/datasets", StatusCode: http.StatusOK, Err: fmt.Errorf("response has no dataset id")}
	}
	return id, nil
}

// UploadImage adds a previously generated image to a dataset. Only HTTP 200 counts
// as success. Re-uploading after a failure is safe.
func (c *Client) UploadImage(ctx context.Context, datasetID, imageID string) error {
	return c.do(ctx, call{
		op:     "datasets.upload",
		method: http.MethodPost,
		path:   "/datasets/" + url.PathEscape(datasetID) + "/images",
		body:   uploadImageBody{ImageID: imageID},
		want:   http.StatusOK,
	})
}

// GetDataset reads a dataset with its images in server order. Never cached.
func (c *Client) GetDataset(ctx context.Context, datasetID string) (*Dataset, error) {
	var out datasetResponse
	err := c.do(ctx, call{op: "datasets.get", method: http.MethodGet, path: "/datasets/" + url.PathEscape(datasetID), out: &out})
	if err != nil {
		if se, ok := err.(*ServiceError); ok && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
		}
		return nil, err
	}
	if out.DatasetsByPK == nil {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
	}
	return &Dataset{
		ID:     out.DatasetsByPK.ID,
		Name:   out.DatasetsByPK.Name,
		Images: toImages(out.DatasetsByPK.DatasetImages),
	}, nil
}

func (c *Client) ListImages(ctx context.Context, datasetID string) ([]Image, error) {
	ds, err := c.GetDataset(ctx, datasetID)
	if err != nil {
		return []Image{}, err
	}
	return ds.Images, nil
}

func (c *Client) CountImages(ctx context.Context, datasetID string) (int, error) {
	images, err := c.ListImages(ctx, datasetID)
	if err != nil {
		return 0, err
	}
	return len(images), nil
}
