package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"fknsrs.biz/p/vidshare/internal/httputil"
)

// Router maps every API route to its handler. Fixed segments such as
// /videos/trending are registered before the {id} routes they would otherwise
// shadow.
func Router() *mux.Router {
	m := mux.NewRouter()

	m.NotFoundHandler = http.HandlerFunc(httputil.NotFound)
	m.MethodNotAllowedHandler = http.HandlerFunc(httputil.MethodNotAllowed)

	m.Methods(http.MethodGet).Path("/categories").HandlerFunc(Categories)
	m.Methods(http.MethodGet).Path("/search").HandlerFunc(Search)

	m.Methods(http.MethodGet).Path("/videos").HandlerFunc(Videos)
	m.Methods(http.MethodPost).Path("/videos").HandlerFunc(CreateVideo)
	m.Methods(http.MethodGet).Path("/videos/trending").HandlerFunc(TrendingVideos)
	m.Methods(http.MethodGet).Path("/videos/subscribed").HandlerFunc(SubscribedVideos)
	m.Methods(http.MethodGet).Path("/videos/{id:[0-9]+}").HandlerFunc(Video)
	m.Methods(http.MethodPatch).Path("/videos/{id:[0-9]+}").HandlerFunc(UpdateVideo)
	m.Methods(http.MethodDelete).Path("/videos/{id:[0-9]+}").HandlerFunc(DeleteVideo)
	m.Methods(http.MethodGet).Path("/videos/{id:[0-9]+}/suggestions").HandlerFunc(VideoSuggestions)
	m.Methods(http.MethodPost).Path("/videos/{id:[0-9]+}/revalidate").HandlerFunc(RevalidateVideo)
	m.Methods(http.MethodPost).Path("/videos/{id:[0-9]+}/restore-thumbnail").HandlerFunc(RestoreVideoThumbnail)
	m.Methods(http.MethodPost).Path("/videos/{id:[0-9]+}/generate-title").HandlerFunc(GenerateVideoTitle)
	m.Methods(http.MethodPost).Path("/videos/{id:[0-9]+}/generate-description").HandlerFunc(GenerateVideoDescription)
	m.Methods(http.MethodPost).Path("/videos/{id:[0-9]+}/views").HandlerFunc(RecordVideoView)
	m.Methods(http.MethodPost).Path("/videos/{id:[0-9]+}/like").HandlerFunc(LikeVideo)
	m.Methods(http.MethodPost).Path("/videos/{id:[0-9]+}/dislike").HandlerFunc(DislikeVideo)
	m.Methods(http.MethodGet).Path("/videos/{id:[0-9]+}/comments").HandlerFunc(VideoComments)

	m.Methods(http.MethodGet).Path("/studio/videos").HandlerFunc(StudioVideos)
	m.Methods(http.MethodGet).Path("/studio/videos/{id:[0-9]+}").HandlerFunc(StudioVideo)

	m.Methods(http.MethodPost).Path("/comments").HandlerFunc(CreateComment)
	m.Methods(http.MethodDelete).Path("/comments/{id:[0-9]+}").HandlerFunc(DeleteComment)
	m.Methods(http.MethodPost).Path("/comments/{id:[0-9]+}/like").HandlerFunc(LikeComment)
	m.Methods(http.MethodPost).Path("/comments/{id:[0-9]+}/dislike").HandlerFunc(DislikeComment)

	m.Methods(http.MethodGet).Path("/users/{id:[0-9]+}").HandlerFunc(User)
	m.Methods(http.MethodPost).Path("/users/{id:[0-9]+}/subscription").HandlerFunc(Subscribe)
	m.Methods(http.MethodDelete).Path("/users/{id:[0-9]+}/subscription").HandlerFunc(Unsubscribe)
	m.Methods(http.MethodGet).Path("/subscriptions").HandlerFunc(Subscriptions)

	m.Methods(http.MethodGet).Path("/playlists").HandlerFunc(Playlists)
	m.Methods(http.MethodPost).Path("/playlists").HandlerFunc(CreatePlaylist)
	m.Methods(http.MethodGet).Path("/playlists/history").HandlerFunc(History)
	m.Methods(http.MethodGet).Path("/playlists/liked").HandlerFunc(Liked)
	m.Methods(http.MethodGet).Path("/playlists/for-video/{videoId:[0-9]+}").HandlerFunc(PlaylistsForVideo)
	m.Methods(http.MethodGet).Path("/playlists/{id:[0-9]+}").HandlerFunc(Playlist)
	m.Methods(http.MethodDelete).Path("/playlists/{id:[0-9]+}").HandlerFunc(DeletePlaylist)
	m.Methods(http.MethodGet).Path("/playlists/{id:[0-9]+}/videos").HandlerFunc(PlaylistVideos)
	m.Methods(http.MethodPost).Path("/playlists/{id:[0-9]+}/videos/{videoId:[0-9]+}").HandlerFunc(AddPlaylistVideo)
	m.Methods(http.MethodDelete).Path("/playlists/{id:[0-9]+}/videos/{videoId:[0-9]+}").HandlerFunc(RemovePlaylistVideo)

	m.Methods(http.MethodPost).Path("/uploads/thumbnails/{videoId:[0-9]+}").HandlerFunc(RequestThumbnailUpload)
	m.Methods(http.MethodPost).Path("/uploads/thumbnails/{videoId:[0-9]+}/complete").HandlerFunc(CompleteThumbnailUpload)
	m.Methods(http.MethodPost).Path("/uploads/banners").HandlerFunc(RequestBannerUpload)
	m.Methods(http.MethodPost).Path("/uploads/banners/complete").HandlerFunc(CompleteBannerUpload)

	m.Methods(http.MethodGet).Path("/workflow-runs/{runId}").HandlerFunc(WorkflowRun)

	m.Methods(http.MethodPost).Path("/webhooks/transcoder").HandlerFunc(TranscoderWebhook)
	m.Methods(http.MethodPost).Path("/webhooks/identity").HandlerFunc(IdentityWebhook)

	return m
}
