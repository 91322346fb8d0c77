package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePictures(t *testing.T, body []byte) []PictureResponse {
	t.Helper()
	var resp ListPicturesResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp.Pictures
}

func TestListPictures_DefaultLimitNewestFirst(t *testing.T) {
	ts := setupTestServer(t)
	likes := make([]int64, 35)
	items := ts.seedItems(t, likes...)

	resp := ts.api.Get("/api/pictures")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	pictures := decodePictures(t, resp.Body.Bytes())
	require.Len(t, pictures, DefaultPictureLimit)
	assert.Equal(t, items[34].ID, pictures[0].ID)
	assert.Equal(t, items[5].ID, pictures[29].ID)
}

func TestListPictures_CustomLimit(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedItems(t, 0, 0, 0)

	resp := ts.api.Get("/api/pictures?limit=2")
	require.Equal(t, http.StatusOK, resp.Code)

	assert.Len(t, decodePictures(t, resp.Body.Bytes()), 2)
}

func TestListPictures_LimitOutOfRange(t *testing.T) {
	ts := setupTestServer(t)

	for _, query := range []string{"limit=0", "limit=101"} {
		t.Run(query, func(t *testing.T) {
			resp := ts.api.Get("/api/pictures?" + query)

			assert.Equal(t, http.StatusBadRequest, resp.Code)
			apiErr := decodeAPIError(t, resp)
			assert.Equal(t, "VALIDATION", apiErr.Code)
			assert.NotNil(t, apiErr.Details)
		})
	}
}

func TestListPictures_Empty(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/pictures")
	require.Equal(t, http.StatusOK, resp.Code)

	assert.JSONEq(t, `[]`, mustField(t, resp.Body.Bytes(), "pictures"))
}

func TestGetPicture(t *testing.T) {
	ts := setupTestServer(t)
	items := ts.seedItems(t, 4)

	resp := ts.api.Get("/api/pictures/" + items[0].ID)
	require.Equal(t, http.StatusOK, resp.Code)

	var picture PictureResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &picture))
	assert.Equal(t, items[0].ID, picture.ID)
	assert.Equal(t, "/uploads/"+items[0].ID, picture.Locator)
	assert.Equal(t, int64(4), picture.LikeCount)
}

func TestGetPicture_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/pictures/missing.webp")

	assert.Equal(t, http.StatusNotFound, resp.Code)
	apiErr := decodeAPIError(t, resp)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
	assert.Equal(t, "item not found", apiErr.Message)
}

func TestLikePicture_IncrementsAndRanks(t *testing.T) {
	ts := setupTestServer(t)
	items := ts.seedItems(t, 0, 0)

	for range 2 {
		resp := ts.api.Post("/api/pictures/" + items[0].ID + "/like")
		require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	}

	resp := ts.api.Post("/api/pictures/" + items[0].ID + "/like")
	var picture PictureResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &picture))
	assert.Equal(t, int64(3), picture.LikeCount)

	ranked := ts.api.Get("/api/presentation")
	require.Equal(t, http.StatusOK, ranked.Code)
	pictures := decodePictures(t, ranked.Body.Bytes())
	require.Len(t, pictures, 2)
	assert.Equal(t, items[0].ID, pictures[0].ID)
}

func TestLikePicture_NotFound(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/pictures/missing.webp/like")

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decodeAPIError(t, resp).Code)
}

func TestPresentation_OrdersByLikesThenRecency(t *testing.T) {
	ts := setupTestServer(t)
	items := ts.seedItems(t, 2, 5, 2)

	resp := ts.api.Get("/api/presentation")
	require.Equal(t, http.StatusOK, resp.Code)

	pictures := decodePictures(t, resp.Body.Bytes())
	require.Len(t, pictures, 3)
	assert.Equal(t, items[1].ID, pictures[0].ID)
	assert.Equal(t, items[2].ID, pictures[1].ID)
	assert.Equal(t, items[0].ID, pictures[2].ID)
}

func mustField(t *testing.T, body []byte, field string) string {
	t.Helper()
	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &obj))
	raw, ok := obj[field]
	require.True(t, ok, "missing field %q in %s", field, body)
	return string(raw)
}
