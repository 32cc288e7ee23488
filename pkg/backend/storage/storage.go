// Package storage uploads and removes objects in backend storage buckets.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/places/pkg/backend/transport"
)

// Bucket names used by the application.
const (
	ProfileImages = "profile-images"
	PlaceImages   = "attraction-images"

	profilePrefix = "profile_"
)

// ResolveBucket picks a bucket from the object name: names starting with
// "profile_" belong to ProfileImages, everything else to PlaceImages. It is a
// default for callers that do not track the bucket themselves.
func ResolveBucket(objectPath string) string {
	if strings.HasPrefix(path.Base(objectPath), profilePrefix) {
		return ProfileImages
	}
	return PlaceImages
}

// TokenSource yields the bearer token for a request; "" means the anon key.
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

// Client talks to the storage API.
type Client struct {
	transport *transport.Client
	tokens    TokenSource
	logger    *zap.Logger
}

func New(tc *transport.Client, tokens TokenSource, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{transport: tc, tokens: tokens, logger: logger}
}

// PublicURL returns the public address of an object. It does not check that
// the object exists.
func (c *Client) PublicURL(bucket, objectPath string) string {
	return c.transport.URL("/storage/v1/object/public/"+bucket+"/"+escapePath(objectPath), "")
}

// Upload stores data at bucket/objectPath as a multipart form and returns its public URL.
func (c *Client) Upload(ctx context.Context, bucket, objectPath, contentType string, data []byte) (string, error) {
	if bucket == "" || objectPath == "" {
		return "", &transport.Error{Message: "bucket and object path are required"}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	body, formType, err := multipartBody(path.Base(objectPath), contentType, data)
	if err != nil {
		return "", &transport.Error{Message: "build upload body: " + err.Error(), Err: err}
	}

	resp, err := c.transport.Do(ctx, transport.Request{
		Service:     transport.ServiceStorage,
		Method:      "POST",
		Path:        objectURLPath(bucket, objectPath),
		ContentType: formType,
		Body:        body,
		Bearer:      c.bearer(ctx),
	})
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		c.logger.Warn("upload rejected", zap.String("bucket", bucket), zap.String("path", objectPath), zap.Error(err))
		return "", err
	}
	c.logger.Debug("object uploaded", zap.String("bucket", bucket), zap.String("path", objectPath), zap.Int("bytes", len(data)))
	return c.PublicURL(bucket, objectPath), nil
}

// UploadImage reads a local image and stores it as desiredName plus the
// file's extension, e.g. profile_1_2.jpg.
func (c *Client) UploadImage(ctx context.Context, bucket, localPath, desiredName string) (string, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", &transport.Error{Message: "read image: " + err.Error(), Err: err}
	}
	ext := ImageExt(localPath)
	return c.Upload(ctx, bucket, desiredName+"."+ext, ImageContentType(ext), data)
}

// Delete removes one object.
func (c *Client) Delete(ctx context.Context, bucket, objectPath string) error {
	resp, err := c.transport.Do(ctx, transport.Request{
		Service: transport.ServiceStorage,
		Method:  "DELETE",
		Path:    objectURLPath(bucket, objectPath),
		Bearer:  c.bearer(ctx),
	})
	if err != nil {
		return err
	}
	return resp.Err()
}

// Remove deletes several objects of one bucket in a single request.
func (c *Client) Remove(ctx context.Context, bucket string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return c.transport.JSON(ctx, transport.Request{
		Service: transport.ServiceStorage,
		Method:  "DELETE",
		Path:    "/storage/v1/object/" + bucket,
		Bearer:  c.bearer(ctx),
	}, map[string][]string{"prefixes": paths}, nil)
}

func (c *Client) bearer(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken(ctx)
}

// ImageExt returns the lower-cased extension of name without the dot, or
// "jpg" when it has none.
func ImageExt(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return "jpg"
	}
	return ext
}

// ImageContentType maps an image extension to its MIME type.
func ImageContentType(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "svg":
		return "image/svg+xml"
	default:
		return "image/" + ext
	}
}

func objectURLPath(bucket, objectPath string) string {
	return "/storage/v1/object/" + bucket + "/" + escapePath(strings.TrimPrefix(objectPath, "/"))
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func multipartBody(filename, contentType string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
