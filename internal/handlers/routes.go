package handlers

import "net/http"

// Routes wires every endpoint onto one mux. Post updates go through POST
// rather than PUT because multipart file uploads ride along.
func Routes(ph *PostsHandler, uh *UploadsHandler, nh *NotificationsHandler, health http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", health)

	mux.HandleFunc("GET /posts", ph.List())
	mux.HandleFunc("POST /posts", ph.Create())
	mux.HandleFunc("GET /posts/{id}", ph.Get())
	mux.HandleFunc("POST /posts/{id}", ph.Update())
	mux.HandleFunc("DELETE /posts/{id}", ph.Delete())
	mux.HandleFunc("DELETE /posts/{postId}/media/{mediaId}", ph.DeleteMedia())

	mux.HandleFunc("POST /chunked-upload/video", uh.Upload())
	mux.HandleFunc("POST /chunked-upload/video/complete", uh.Complete())

	mux.HandleFunc("GET /notifications", nh.List())
	mux.HandleFunc("GET /notifications/unread", nh.Unread())
	mux.HandleFunc("GET /notifications/stats", nh.Stats())
	mux.HandleFunc("PATCH /notifications/{id}/read", nh.MarkRead())
	mux.HandleFunc("POST /notifications/mark-all-read", nh.MarkAllRead())
	mux.HandleFunc("DELETE /notifications/{id}", nh.Delete())
	mux.HandleFunc("DELETE /notifications/read/all", nh.DeleteRead())

	return mux
}
