// Package ws pushes live catalog changes to connected admin screens.
//
// Layout:
//   - Hub: tracks every connection and fans events out
//   - Client: one websocket connection
//   - Event: the message format on the wire
//
// Flow:
//  1. An admin changes something over HTTP → service → DB
//  2. The service calls a Hub Broadcast method
//  3. The hub hands the encoded event to every client's send buffer
//  4. Each client's WritePump writes it to the socket
//
// Events are notifications only: a screen that receives one refetches what
// it shows. There is no ordering or merge protocol between admins.
package ws

// Event is one websocket message.
//
// Seq grows by one per outbound event so a client can notice a gap and
// refetch.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → Server
const (
	OpHeartbeat = "heartbeat" // sent every 30s by the admin UI
)

// Server → Client
const (
	OpReady         = "ready"
	OpHeartbeatAck  = "heartbeat_ack"
	OpImageCreate   = "image_create"
	OpImageUpdate   = "image_update"
	OpImageDelete   = "image_delete"
	OpImageReorder  = "image_reorder"
	OpProductUpdate = "product_update"
)

// ReadyData is the payload of the first event after connecting.
type ReadyData struct {
	UserID         string   `json:"user_id"`
	OnlineAdminIDs []string `json:"online_admin_ids"`
}

// ImageDeleteData is the payload of image_delete.
type ImageDeleteData struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// ImageReorderData is the payload of image_reorder. Images is the whole
// bucket in its new order.
type ImageReorderData struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Images      any    `json:"images"`
}

// Product change actions.
const (
	ProductCreated = "create"
	ProductUpdated = "update"
	ProductDeleted = "delete"
)

// ProductUpdateData is the payload of product_update.
type ProductUpdateData struct {
	Action   string `json:"action"`
	ID       string `json:"id"`
	Category string `json:"category"`
	Product  any    `json:"product,omitempty"`
}
