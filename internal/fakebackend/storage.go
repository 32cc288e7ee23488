package fakebackend

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Object is a stored blob.
type Object struct {
	ContentType string
	Data        []byte
	Owner       string
}

type removeRequest struct {
	Prefixes []string `json:"prefixes"`
}

// Object returns the blob stored at bucket/path.
func (s *Server) Object(bucket, path string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.buckets[bucket][path]
	if !ok {
		return Object{}, false
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return obj, true
}

// ObjectPaths lists the object paths of bucket.
func (s *Server) ObjectPaths(bucket string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.buckets[bucket]))
	for p := range s.buckets[bucket] {
		out = append(out, p)
	}
	return out
}

// PutObject stores a blob directly, creating the bucket when missing.
func (s *Server) PutObject(bucket, path, contentType string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buckets[bucket] == nil {
		s.buckets[bucket] = make(map[string]Object)
	}
	s.buckets[bucket][path] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
}

func (s *Server) storageObject(ctx *fasthttp.RequestCtx) {
	raw, _ := ctx.UserValue("object").(string)
	raw = strings.TrimPrefix(raw, "/")
	method := string(ctx.Method())

	if rest, ok := strings.CutPrefix(raw, "public/"); ok && method == fasthttp.MethodGet {
		bucket, path, _ := strings.Cut(rest, "/")
		s.download(ctx, bucket, path)
		return
	}

	if !s.checkAPIKey(ctx) {
		respondStorageError(ctx, fasthttp.StatusUnauthorized, "Unauthorized", "Invalid API key")
		return
	}
	acc, err := s.authenticate(ctx)
	if err != nil {
		respondStorageError(ctx, fasthttp.StatusForbidden, "Unauthorized", err.Error())
		return
	}
	owner := ""
	if acc != nil {
		owner = acc.user.ID
	}

	bucket, path, _ := strings.Cut(raw, "/")
	s.mu.Lock()
	_, bucketExists := s.buckets[bucket]
	s.mu.Unlock()
	if !bucketExists {
		respondStorageError(ctx, fasthttp.StatusNotFound, "Bucket not found", "Bucket not found")
		return
	}

	switch {
	case (method == fasthttp.MethodPost || method == fasthttp.MethodPut) && path != "":
		s.upload(ctx, bucket, path, owner, method == fasthttp.MethodPut)
	case method == fasthttp.MethodDelete && path == "":
		s.removeObjects(ctx, bucket)
	case method == fasthttp.MethodDelete:
		s.deleteObject(ctx, bucket, path)
	case method == fasthttp.MethodGet && path != "":
		s.download(ctx, bucket, path)
	default:
		respondStorageError(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed", "unsupported storage operation")
	}
}

func (s *Server) upload(ctx *fasthttp.RequestCtx, bucket, path, owner string, overwrite bool) {
	contentType := string(ctx.Request.Header.ContentType())
	var data []byte
	if strings.HasPrefix(contentType, "multipart/form-data") {
		fh, err := ctx.FormFile("file")
		if err != nil {
			respondStorageError(ctx, fasthttp.StatusBadRequest, "Invalid request", "missing file field")
			return
		}
		f, err := fh.Open()
		if err != nil {
			respondStorageError(ctx, fasthttp.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		data, err = io.ReadAll(f)
		f.Close()
		if err != nil {
			respondStorageError(ctx, fasthttp.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		contentType = fh.Header.Get("Content-Type")
	} else {
		data = append([]byte(nil), ctx.PostBody()...)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if string(ctx.Request.Header.Peek("X-Upsert")) == "true" {
		overwrite = true
	}

	s.mu.Lock()
	_, exists := s.buckets[bucket][path]
	if exists && !overwrite {
		s.mu.Unlock()
		respondJSON(ctx, fasthttp.StatusBadRequest, storageError{StatusCode: "409", Error: "Duplicate", Message: "The resource already exists"})
		return
	}
	s.buckets[bucket][path] = Object{ContentType: contentType, Data: data, Owner: owner}
	s.mu.Unlock()

	respondJSON(ctx, fasthttp.StatusOK, map[string]string{"Key": bucket + "/" + path, "Id": uuid.NewString()})
}

func (s *Server) deleteObject(ctx *fasthttp.RequestCtx, bucket, path string) {
	s.mu.Lock()
	_, exists := s.buckets[bucket][path]
	delete(s.buckets[bucket], path)
	s.mu.Unlock()
	if !exists {
		respondStorageError(ctx, fasthttp.StatusNotFound, "not_found", "Object not found")
		return
	}
	respondJSON(ctx, fasthttp.StatusOK, map[string]string{"message": "Successfully deleted"})
}

func (s *Server) removeObjects(ctx *fasthttp.RequestCtx, bucket string) {
	body := bytes.TrimSpace(ctx.PostBody())
	var paths []string
	if len(body) > 0 && body[0] == '[' {
		_ = json.Unmarshal(body, &paths)
	} else {
		var req removeRequest
		_ = json.Unmarshal(body, &req)
		paths = req.Prefixes
	}
	if len(paths) == 0 {
		respondStorageError(ctx, fasthttp.StatusBadRequest, "Invalid request", "prefixes is required")
		return
	}

	s.mu.Lock()
	removed := make([]map[string]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := s.buckets[bucket][p]; ok {
			delete(s.buckets[bucket], p)
			removed = append(removed, map[string]string{"name": p, "bucket_id": bucket})
		}
	}
	s.mu.Unlock()
	respondJSON(ctx, fasthttp.StatusOK, removed)
}

func (s *Server) download(ctx *fasthttp.RequestCtx, bucket, path string) {
	obj, ok := s.Object(bucket, path)
	if !ok {
		respondStorageError(ctx, fasthttp.StatusNotFound, "not_found", "Object not found")
		return
	}
	ctx.Response.Header.SetContentType(obj.ContentType)
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(obj.Data)
}
