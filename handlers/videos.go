package handlers

import (
	"net/http"

	"fknsrs.biz/p/vidshare/internal/httputil"
	"fknsrs.biz/p/vidshare/internal/reactions"
	"fknsrs.biz/p/vidshare/internal/videos"
	"fknsrs.biz/p/vidshare/internal/views"
	"fknsrs.biz/p/vidshare/internal/workflow"
	"fknsrs.biz/p/vidshare/models"
)

func filter(r *http.Request) (videos.Filter, error) {
	categoryID, err := intQuery(r, "categoryId")
	if err != nil {
		return videos.Filter{}, err
	}

	userID, err := intQuery(r, "userId")
	if err != nil {
		return videos.Filter{}, err
	}

	return videos.Filter{CategoryID: categoryID, UserID: userID}, nil
}

func Videos(rw http.ResponseWriter, r *http.Request) {
	f, err := filter(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	request, err := timeList(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	page, err := videos.ListPublic(r.Context(), f, request)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}

func TrendingVideos(rw http.ResponseWriter, r *http.Request) {
	f, err := filter(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	request, err := countList(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	page, err := videos.ListTrending(r.Context(), f, request)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}

func SubscribedVideos(rw http.ResponseWriter, r *http.Request) {
	request, err := timeList(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	page, err := videos.ListSubscribed(r.Context(), request)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}

func Search(rw http.ResponseWriter, r *http.Request) {
	categoryID, err := intQuery(r, "categoryId")
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	request, err := timeList(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	page, err := videos.Search(r.Context(), r.URL.Query().Get("q"), categoryID, request)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}

func Video(rw http.ResponseWriter, r *http.Request) {
	id, err := intVar(r, "id")
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	v, err := videos.GetOne(r.Context(), id)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, v)
}

func VideoSuggestions(rw http.ResponseWriter, r *http.Request) {
	id, err := intVar(r, "id")
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	request, err := timeList(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	page, err := videos.Suggestions(r.Context(), id, request)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}

func StudioVideos(rw http.ResponseWriter, r *http.Request) {
	request, err := timeList(r)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	page, err := videos.ListStudio(r.Context(), request)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, page)
}

func StudioVideo(rw http.ResponseWriter, r *http.Request) {
	id, err := intVar(r, "id")
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	v, err := videos.GetStudio(r.Context(), id)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, v)
}

func CreateVideo(rw http.ResponseWriter, r *http.Request) {
	upload, err := videos.CreateUpload(r.Context())
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusCreated, upload)
}

func UpdateVideo(rw http.ResponseWriter, r *http.Request) {
	id, err := intVar(r, "id")
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	var in videos.UpdateInput
	if err := httputil.ReadJSON(r, &in); err != nil {
		httputil.Error(rw, r, err)
		return
	}

	v, err := videos.Update(r.Context(), id, in)
	if err != nil {
		httputil.Error(rw, r, err)
		return
	}

	httputil.WriteJSON(rw, r, http.StatusOK, v)
}

// idAction adapts an operation on the resource named by {id} to a handler
// writing its result as JSON.
func idAction[T any](status int, fn func(r *http.Request, id int) (T, error)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		id, err := intVar(r, "id")
		if err != nil {
			httputil.Error(rw, r, err)
			return
		}

		v, err := fn(r, id)
		if err != nil {
			httputil.Error(rw, r, err)
			return
		}

		httputil.WriteJSON(rw, r, status, v)
	}
}

var DeleteVideo = idAction(http.StatusOK, func(r *http.Request, id int) (*models.Video, error) {
	return videos.Remove(r.Context(), id)
})

var RevalidateVideo = idAction(http.StatusOK, func(r *http.Request, id int) (*models.Video, error) {
	return videos.Revalidate(r.Context(), id)
})

var RestoreVideoThumbnail = idAction(http.StatusOK, func(r *http.Request, id int) (*models.Video, error) {
	return videos.RestoreThumbnail(r.Context(), id)
})

var GenerateVideoTitle = idAction(http.StatusAccepted, func(r *http.Request, id int) (*models.WorkflowRun, error) {
	return workflow.StartGeneration(r.Context(), id, models.WorkflowKindTitle)
})

var GenerateVideoDescription = idAction(http.StatusAccepted, func(r *http.Request, id int) (*models.WorkflowRun, error) {
	return workflow.StartGeneration(r.Context(), id, models.WorkflowKindDescription)
})

var RecordVideoView = idAction(http.StatusOK, func(r *http.Request, id int) (map[string]bool, error) {
	if err := views.Record(r.Context(), id); err != nil {
		return nil, err
	}

	return map[string]bool{"ok": true}, nil
})

var LikeVideo = idAction(http.StatusOK, func(r *http.Request, id int) (*reactions.State, error) {
	return reactions.ToggleVideo(r.Context(), id, models.ReactionLike)
})

var DislikeVideo = idAction(http.StatusOK, func(r *http.Request, id int) (*reactions.State, error) {
	return reactions.ToggleVideo(r.Context(), id, models.ReactionDislike)
})
