package upload

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"regexp"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/online_store/internal/imaging"
	"github.com/Skotchmaster/online_store/internal/objectstore"
)

type memoryBucket struct {
	objects map[string][]byte
}

func (m *memoryBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryBucket) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://store.example/" + *in.Key + "?sig=1"}, nil
}

type opaquePublisher struct{}

func (opaquePublisher) Publish(context.Context, []byte, string, string, string) (objectstore.Reference, error) {
	return objectstore.Reference{}, errors.New("connection reset")
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(context.Context, []byte, string, string, string) (objectstore.Reference, error) {
	return objectstore.Reference{}, objectstore.ErrUploadFailed
}

// slowPublisher answers after delay, like an object store under load.
type slowPublisher struct {
	delay time.Duration
}

func (p slowPublisher) Publish(ctx context.Context, _ []byte, key, directory, _ string) (objectstore.Reference, error) {
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return objectstore.Reference{}, ctx.Err()
	}
	return objectstore.Reference{URL: "https://store.example/" + directory + key, Key: directory + key}, nil
}

var fixedNow = time.UnixMilli(1700000000123)

func newTestPipeline(bucket *memoryBucket) *Pipeline {
	p := NewPipeline(objectstore.NewPublisherWith(bucket, bucket), "shop/", "images")
	p.Now = func() time.Time { return fixedNow }
	return p
}

func photo(t *testing.T, w, h int) []byte {
	t.Helper()
	rnd := rand.New(rand.NewPCG(7, 9))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(min(max((x+y)*255/(w+h)+rnd.IntN(13)-6, 0), 255))
			img.SetRGBA(x, y, color.RGBA{R: v, G: 255 - v, B: uint8(x % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// hugeCanvas is a valid PNG header declaring a 20000x20000 grayscale image.
func hugeCanvas() []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := append([]byte("IHDR"), 0, 0, 0x4e, 0x20, 0, 0, 0x4e, 0x20, 8, 0, 0, 0, 0)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(chunk)-4))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

type part struct {
	field, filename, mime string
	data                  []byte
}

func multipartRequest(t *testing.T, data string, file *part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != "" {
		require.NoError(t, mw.WriteField(DataField, data))
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.filename+`"`)
		h.Set("Content-Type", file.mime)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/product/create", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

// serve runs the middleware in front of a handler that echoes the bound body.
func serve(t *testing.T, p *Pipeline, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	var got map[string]any
	e.POST("/product/create", func(c echo.Context) error {
		got = map[string]any{}
		if err := c.Bind(&got); err != nil {
			return err
		}
		return c.NoContent(http.StatusOK)
	}, p.Single("productImage"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, got
}

func TestSingle_ImagePipelineEndToEnd(t *testing.T) {
	t.Parallel()

	bucket := &memoryBucket{objects: map[string][]byte{}}
	input := photo(t, 2000, 1500)
	require.LessOrEqual(t, len(input), MaxFileSize)

	req := multipartRequest(t, `{"name":"Lamp","price":12.5,"imageType":"product"}`, &part{
		field: "productImage", filename: "desk lamp.jpeg", mime: "image/jpeg", data: input,
	})
	rec, body := serve(t, newTestPipeline(bucket), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "Lamp", body["name"])
	assert.EqualValues(t, 12.5, body["price"])
	assert.NotContains(t, body, "imageType")

	require.Len(t, bucket.objects, 1)
	var key string
	var stored []byte
	for k, v := range bucket.objects {
		key, stored = k, v
	}
	assert.Regexp(t, regexp.MustCompile(`^shop/local/imageupload/desk_lamp_\d+\.jpeg$`), key)
	assert.Equal(t, "shop/local/imageupload/desk_lamp_1700000000123.jpeg", key)
	assert.Equal(t, "https://store.example/"+key+"?sig=1", body[ImageURLField])

	assert.LessOrEqual(t, len(stored), imaging.DefaultTargetBytes)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(stored))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1200, cfg.Width)
	assert.Equal(t, 900, cfg.Height)
}

func TestSingle_PassesThroughJSON(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/product/create", strings.NewReader(`{"name":"Mug"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec, body := serve(t, newTestPipeline(&memoryBucket{objects: map[string][]byte{}}), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mug", body["name"])
	assert.NotContains(t, body, ImageURLField)
}

func TestSingle_FormWithoutFile(t *testing.T) {
	t.Parallel()

	bucket := &memoryBucket{objects: map[string][]byte{}}
	rec, body := serve(t, newTestPipeline(bucket), multipartRequest(t, `{"name":"Mug","imageType":"x"}`, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"name": "Mug"}, body)
	assert.Empty(t, bucket.objects)
}

func TestSingle_NonImageFileIsNotStored(t *testing.T) {
	t.Parallel()

	bucket := &memoryBucket{objects: map[string][]byte{}}
	req := multipartRequest(t, `{"name":"Manual"}`, &part{
		field: "productImage", filename: "manual.pdf", mime: "application/pdf", data: []byte("%PDF-1.4"),
	})
	rec, body := serve(t, newTestPipeline(bucket), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Manual", body["name"])
	assert.NotContains(t, body, ImageURLField)
	assert.Empty(t, bucket.objects)
}

func TestSingle_Rejections(t *testing.T) {
	t.Parallel()

	bucket := &memoryBucket{objects: map[string][]byte{}}
	small := photo(t, 40, 30)

	cases := []struct {
		name string
		p    *Pipeline
		req  *http.Request
		want int
	}{
		{
			name: "bad data json",
			p:    newTestPipeline(bucket),
			req:  multipartRequest(t, `{"name":`, nil),
			want: http.StatusBadRequest,
		},
		{
			name: "undecodable image",
			p:    newTestPipeline(bucket),
			req: multipartRequest(t, `{}`, &part{
				field: "productImage", filename: "x.png", mime: "image/png", data: []byte("nope"),
			}),
			want: http.StatusBadRequest,
		},
		{
			name: "canvas over the pixel limit",
			p:    newTestPipeline(bucket),
			req: multipartRequest(t, `{}`, &part{
				field: "productImage", filename: "huge.png", mime: "image/png", data: hugeCanvas(),
			}),
			want: http.StatusBadRequest,
		},
		{
			name: "file over the cap",
			p:    newTestPipeline(bucket),
			req: multipartRequest(t, `{}`, &part{
				field: "productImage", filename: "big.jpg", mime: "image/jpeg", data: bytes.Repeat([]byte{1}, MaxFileSize+1),
			}),
			want: http.StatusRequestEntityTooLarge,
		},
		{
			name: "object store down",
			p:    &Pipeline{Publisher: brokenPublisher{}, TargetBytes: imaging.DefaultTargetBytes, Quality: imaging.DefaultQuality, Now: time.Now},
			req: multipartRequest(t, `{}`, &part{
				field: "productImage", filename: "ok.jpg", mime: "image/jpeg", data: small,
			}),
			want: http.StatusBadGateway,
		},
		{
			name: "unexpected publisher error",
			p:    &Pipeline{Publisher: opaquePublisher{}, TargetBytes: imaging.DefaultTargetBytes, Quality: imaging.DefaultQuality, Now: time.Now},
			req: multipartRequest(t, `{}`, &part{
				field: "productImage", filename: "ok.jpg", mime: "image/jpeg", data: small,
			}),
			want: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		rec, body := serve(t, tc.p, tc.req)
		assert.Equal(t, tc.want, rec.Code, tc.name)
		assert.Nil(t, body, "%s: handler must not run", tc.name)
	}
	assert.Empty(t, bucket.objects)
}

func TestSingle_SlowStoreOutlivesWriteTimeout(t *testing.T) {
	t.Parallel()

	p := &Pipeline{
		Publisher:   slowPublisher{delay: 300 * time.Millisecond},
		Directory:   "shop/",
		Bucket:      "images",
		TargetBytes: imaging.DefaultTargetBytes,
		Quality:     imaging.DefaultQuality,
		Now:         time.Now,
	}
	e := echo.New()
	e.POST("/product/create", func(c echo.Context) error {
		got := map[string]any{}
		if err := c.Bind(&got); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, got)
	}, p.Single("productImage"))

	srv := httptest.NewUnstartedServer(e)
	srv.Config.ReadTimeout = 100 * time.Millisecond
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	t.Cleanup(srv.Close)

	req := multipartRequest(t, `{"name":"Lamp"}`, &part{
		field: "productImage", filename: "lamp.jpg", mime: "image/jpeg", data: photo(t, 64, 48),
	})
	out, err := http.NewRequest(http.MethodPost, srv.URL+"/product/create", req.Body)
	require.NoError(t, err)
	out.Header.Set(echo.HeaderContentType, req.Header.Get(echo.HeaderContentType))

	resp, err := srv.Client().Do(out)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Lamp", body["name"])
	assert.Contains(t, body[ImageURLField], "https://store.example/shop/")
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(42)
	assert.Equal(t, "my_cat_42.jpg", ObjectName("my cat.jpg", now))
	assert.Equal(t, "scan_42.JPEG", ObjectName("scan.JPEG", now))
	assert.Equal(t, "logo_42.jpg", ObjectName("logo.png", now))
	assert.Equal(t, "noext_42.jpg", ObjectName("noext", now))
}
