package handlers

import (
	"net/http"

	"fknsrs.biz/p/vidshare/internal/httputil"
	"fknsrs.biz/p/vidshare/internal/uploads"
)

type completeUpload struct {
	Key string `json:"key"`
}

func readKey(r *http.Request) (string, error) {
	var in completeUpload
	if err := httputil.ReadJSON(r, &in); err != nil {
		return "", err
	}

	return in.Key, nil
}

func RequestThumbnailUpload(rw http.ResponseWriter, r *http.Request) {
	videoID, err := intVar(r, "videoId")
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	t, err := uploads.RequestThumbnail(r.Context(), videoID)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, t)
}

func CompleteThumbnailUpload(rw http.ResponseWriter, r *http.Request) {
	videoID, err := intVar(r, "videoId")
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	key, err := readKey(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	v, err := uploads.CompleteThumbnail(r.Context(), videoID, key)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, v)
}

func RequestBannerUpload(rw http.ResponseWriter, r *http.Request) {
	t, err := uploads.RequestBanner(r.Context())
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, t)
}

func CompleteBannerUpload(rw http.ResponseWriter, r *http.Request) {
	key, err := readKey(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	u, err := uploads.CompleteBanner(r.Context(), key)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, u)
}
