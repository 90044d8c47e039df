package handlers

import (
	"net/http"
	"time"

	"fknsrs.biz/p/vidshare/internal/httputil"
	"fknsrs.biz/p/vidshare/internal/pagination"
	"fknsrs.biz/p/vidshare/internal/playlists"
	"fknsrs.biz/p/vidshare/internal/videos"
	"fknsrs.biz/p/vidshare/models"
)

func Playlists(rw http.ResponseWriter, r *http.Request) {
	request, err := timeList(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	page, err := playlists.List(r.Context(), request)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}

func collection(fn func(r *http.Request, request pagination.Request[time.Time]) (*pagination.Page[videos.CollectedVideo, time.Time], error)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		request, err := timeList(r)
		if err != nil {
			httputil.Error(rw, r, err)
			return
		}

		page, err := fn(r, request)
		if err != nil {
			httputil.Error(rw, r, err)
			return
		}

		httputil.WriteJSON(rw, r, http.StatusOK, page)
	}
}

var History = collection(func(r *http.Request, request pagination.Request[time.Time]) (*pagination.Page[videos.CollectedVideo, time.Time], error) {
	return playlists.History(r.Context(), request)
})

var Liked = collection(func(r *http.Request, request pagination.Request[time.Time]) (*pagination.Page[videos.CollectedVideo, time.Time], error) {
	return playlists.Liked(r.Context(), request)
})

var PlaylistVideos = collection(func(r *http.Request, request pagination.Request[time.Time]) (*pagination.Page[videos.CollectedVideo, time.Time], error) {
	id, err := intVar(r, "id")
	if err != nil {
		return nil, err
	}

	return playlists.Videos(r.Context(), id, request)
})

func PlaylistsForVideo(rw http.ResponseWriter, r *http.Request) {
	videoID, err := intVar(r, "videoId")
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	request, err := timeList(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	page, err := playlists.ListForVideo(r.Context(), videoID, request)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}

func CreatePlaylist(rw http.ResponseWriter, r *http.Request) {
	var in playlists.CreateInput
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(rw, r, err)
		return
	}

	p, err := playlists.Create(r.Context(), in)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusCreated, p)
}

var Playlist = idAction(http.StatusOK, func(r *http.Request, id int) (*models.PlaylistListing, error) {
	return playlists.GetOne(r.Context(), id)
})

var DeletePlaylist = idAction(http.StatusOK, func(r *http.Request, id int) (*models.Playlist, error) {
	return playlists.Remove(r.Context(), id)
})

type membership struct {
	PlaylistID int  `json:"playlistId"`
	VideoID    int  `json:"videoId"`
	Contains   bool `json:"containsVideo"`
}

var AddPlaylistVideo = idAction(http.StatusOK, func(r *http.Request, id int) (*membership, error) {
	videoID, err := intVar(r, "videoId")
	if err != nil {
		return nil, err
	}

	if err := playlists.AddVideo(r.Context(), id, videoID); err != nil {
		return nil, err
	}

	return &membership{PlaylistID: id, VideoID: videoID, Contains: true}, nil
})

var RemovePlaylistVideo = idAction(http.StatusOK, func(r *http.Request, id int) (*membership, error) {
	videoID, err := intVar(r, "videoId")
	if err != nil {
		return nil, err
	}

	if err := playlists.RemoveVideo(r.Context(), id, videoID); err != nil {
		return nil, err
	}

	return &membership{PlaylistID: id, VideoID: videoID, Contains: false}, nil
})
