package handler

import (
	"net/http"
)

// SocketServer upgrades a request to a push connection for principal.
type SocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, principal string)
}

type WSHandler struct {
	hub SocketServer
}

func NewWSHandler(hub SocketServer) *WSHandler { return &WSHandler{hub: hub} }

func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalID(w, r)
	if !ok {
		return
	}
	h.hub.ServeWS(w, r, principal)
}
