package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/groundstore/groundstore/internal/asset"
	"github.com/groundstore/groundstore/internal/creds"
	"github.com/groundstore/groundstore/internal/driver"
	"github.com/groundstore/groundstore/internal/fetch"
	"github.com/groundstore/groundstore/internal/timelib"
)

// ToolHandler serves the remote-object tool calls. Failures produce
// {"ok": false} and a log message; payloads are returned only on success.
type ToolHandler struct {
	Client        *fetch.Client
	Assets        *asset.Directory
	DefaultRegion string
	DefaultAsset  string
}

// objectRequest is the shared request shape of the object tool calls.
type objectRequest struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	Offset   int64  `json:"offset"`
	Region   string `json:"region"`
	Asset    string `json:"asset"`
	Filename string `json:"filename"`
}

// statusBody is the JSON result of the non-payload tool calls.
type statusBody struct {
	OK    bool   `json:"ok"`
	Bytes int64  `json:"bytes,omitempty"`
	Error string `json:"error,omitempty"`
}

// credentialRecord is the wire form of a stored credential. Expiration is a
// timestamp string, converted to GPS milliseconds on put.
type credentialRecord struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
	Expiration      string `json:"expiration"`
}

// resolve fills a fetch request from the call parameters, applying the
// configured defaults and any matching asset directory entry.
func (h *ToolHandler) resolve(req objectRequest) fetch.Request {
	assetName := req.Asset
	if assetName == "" {
		assetName = h.DefaultAsset
	}
	region := req.Region
	endpoint := ""
	if a := h.Assets.Lookup(assetName); a != nil {
		if region == "" {
			region = a.Region()
		}
		endpoint = a.Endpoint()
	}
	if region == "" {
		region = h.DefaultRegion
	}
	return fetch.Request{
		Region:   region,
		Bucket:   req.Bucket,
		Key:      req.Key,
		Endpoint: endpoint,
		Cred:     creds.Get(assetName),
	}
}

// decode parses the JSON request body and validates the required fields.
func decode(w http.ResponseWriter, r *http.Request, req *objectRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		slog.Error("malformed tool request", "path", r.URL.Path, "err", err)
		writeStatus(w, http.StatusBadRequest, statusBody{OK: false, Error: "malformed request"})
		return false
	}
	if req.Bucket == "" || req.Key == "" {
		slog.Error("tool request missing bucket or key", "path", r.URL.Path)
		writeStatus(w, http.StatusBadRequest, statusBody{OK: false, Error: "bucket and key are required"})
		return false
	}
	return true
}

// writeStatus writes a JSON status body with the given HTTP code.
func writeStatus(w http.ResponseWriter, code int, body statusBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// S3Get streams the whole object back to the caller.
func (h *ToolHandler) S3Get(w http.ResponseWriter, r *http.Request) {
	var req objectRequest
	if !decode(w, r, &req) {
		return
	}

	data, err := h.Client.ReadAll(r.Context(), h.resolve(req))
	if err != nil {
		slog.Error("error getting S3 object", "bucket", req.Bucket, "key", req.Key, "err", err)
		writeStatus(w, http.StatusBadGateway, statusBody{OK: false, Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// S3Read returns size bytes starting at offset via the fixed-buffer sink.
func (h *ToolHandler) S3Read(w http.ResponseWriter, r *http.Request) {
	var req objectRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Size <= 0 || req.Offset < 0 {
		slog.Error("invalid read window", "size", req.Size, "offset", req.Offset)
		writeStatus(w, http.StatusBadRequest, statusBody{OK: false, Error: "invalid size or offset"})
		return
	}

	buf := make([]byte, req.Size)
	if _, err := h.Client.ReadInto(r.Context(), h.resolve(req), buf, req.Offset); err != nil {
		slog.Error("error reading S3 object", "bucket", req.Bucket, "key", req.Key, "err", err)
		writeStatus(w, http.StatusBadGateway, statusBody{OK: false, Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(buf)
}

// S3Download writes the object to a server-local file. The filename
// defaults to the final element of the key.
func (h *ToolHandler) S3Download(w http.ResponseWriter, r *http.Request) {
	var req objectRequest
	if !decode(w, r, &req) {
		return
	}
	filename := req.Filename
	if filename == "" {
		filename = path.Base(req.Key)
	}

	n, err := h.Client.Download(r.Context(), h.resolve(req), filename)
	if err != nil {
		slog.Error("error downloading S3 object", "bucket", req.Bucket, "key", req.Key, "err", err)
		writeStatus(w, http.StatusBadGateway, statusBody{OK: false, Error: err.Error()})
		return
	}

	writeStatus(w, http.StatusOK, statusBody{OK: true, Bytes: n})
}

// S3Upload sends a server-local file to the object store.
func (h *ToolHandler) S3Upload(w http.ResponseWriter, r *http.Request) {
	var req objectRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Filename == "" {
		writeStatus(w, http.StatusBadRequest, statusBody{OK: false, Error: "filename is required"})
		return
	}

	n, err := h.Client.Upload(r.Context(), h.resolve(req), req.Filename)
	if err != nil {
		slog.Error("error uploading S3 object", "bucket", req.Bucket, "key", req.Key, "err", err)
		writeStatus(w, http.StatusBadGateway, statusBody{OK: false, Error: err.Error()})
		return
	}

	writeStatus(w, http.StatusOK, statusBody{OK: true, Bytes: n})
}

// S3Cache initializes the process-wide disk cache.
func (h *ToolHandler) S3Cache(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Root     string `json:"root"`
		MaxFiles int    `json:"max_files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatus(w, http.StatusBadRequest, statusBody{OK: false, Error: "malformed request"})
		return
	}
	if req.Root == "" {
		req.Root = driver.DefaultCacheRoot
	}
	if req.MaxFiles <= 0 {
		req.MaxFiles = driver.DefaultMaxCacheFiles
	}

	if err := driver.CreateCache(req.Root, req.MaxFiles); err != nil {
		slog.Error("error creating S3 cache", "root", req.Root, "err", err)
		writeStatus(w, http.StatusInternalServerError, statusBody{OK: false, Error: err.Error()})
		return
	}

	writeStatus(w, http.StatusOK, statusBody{OK: true})
}

// CSGet returns the stored credential record for a host.
func (h *ToolHandler) CSGet(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Query().Get("host")
	if host == "" {
		writeStatus(w, http.StatusBadRequest, statusBody{OK: false, Error: "host is required"})
		return
	}

	cred := creds.Get(host)
	if !cred.Provided {
		writeStatus(w, http.StatusNotFound, statusBody{OK: false})
		return
	}

	record := credentialRecord{
		AccessKeyID:     cred.AccessKeyID,
		SecretAccessKey: cred.SecretAccessKey,
		SessionToken:    cred.SessionToken,
	}
	if cred.ExpirationGPS != 0 {
		record.Expiration = timelib.FromGPSMS(cred.ExpirationGPS).Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(struct {
		OK         bool             `json:"ok"`
		Credential credentialRecord `json:"credential"`
	}{OK: true, Credential: record})
}

// CSPut stores a credential record for a host.
func (h *ToolHandler) CSPut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Host       string           `json:"host"`
		Credential credentialRecord `json:"credential"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Host == "" {
		writeStatus(w, http.StatusBadRequest, statusBody{OK: false, Error: "host and credential are required"})
		return
	}

	cred := creds.Credential{
		AccessKeyID:     req.Credential.AccessKeyID,
		SecretAccessKey: req.Credential.SecretAccessKey,
		SessionToken:    req.Credential.SessionToken,
		Provided:        true,
	}
	if req.Credential.Expiration != "" {
		gps, err := timelib.Str2GPSTime(req.Credential.Expiration)
		if err != nil {
			slog.Error("error putting credential", "host", req.Host, "err", err)
			writeStatus(w, http.StatusBadRequest, statusBody{OK: false, Error: "unrecognized expiration"})
			return
		}
		cred.ExpirationGPS = gps
	}

	ok := creds.Put(req.Host, cred)
	writeStatus(w, http.StatusOK, statusBody{OK: ok})
}
