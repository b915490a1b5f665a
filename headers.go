package moovit

import (
	"strconv"
)

// Moovit web client version the headers claim to be.
const APIVersion = "5.151.2/V567"

// BuildHeaders returns the headers sent with every JSON API request.
func BuildHeaders(cfg ResolvedConfig) map[string]string {
	return map[string]string{
		"moovit_app_type":       "WEB_TRIP_PLANNER",
		"moovit_client_version": APIVersion,
		"moovit_customer_id":    cfg.CustomerID,
		"moovit_metro_id":       strconv.Itoa(cfg.MetroID),
		"moovit_phone_type":     "2",
		"moovit_user_key":       cfg.UserKey,
		"moovit_gtfs_language":  cfg.Language,
		"accept":                "application/json",
	}
}

// BuildProtobufHeaders returns the headers for endpoints answering in
// protobuf.
func BuildProtobufHeaders(cfg ResolvedConfig) map[string]string {
	headers := BuildHeaders(cfg)
	headers["accept"] = "application/x-protobuf"
	headers["protobuf-version"] = "V3"
	headers["content-type"] = "application/json"
	return headers
}
