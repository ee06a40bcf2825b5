package server

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/T9Tuco/NexusBD/internal/types"
	"github.com/T9Tuco/NexusBD/internal/utils"
)

const (
	AlgorithmGzip    = "gzip"
	AlgorithmDeflate = "deflate"
	AlgorithmBrotli  = "br"

	defaultCompressionLevel = 6
	defaultThreshold        = 1024
	minCompressionGain      = 0.05
)

type CompressionConfig struct {
	Algorithm    string   `json:"algorithm"`
	Level        int      `json:"level"`
	Threshold    int      `json:"threshold"`
	AllowedTypes []string `json:"allowed_types"`
}

type CompressionMiddleware struct {
	logger     types.Logger
	cfg        *CompressionConfig
	name       string
	weight     int
	algorithm  []byte
	writerPool sync.Pool
	bufferPool sync.Pool
}

// compressWriter is the shared shape of the three codec writers.
type compressWriter interface {
	io.WriteCloser
	Reset(w io.Writer)
}

func NewCompressionMiddleware(logger types.Logger, item *types.MiddlewareItemConfig) *CompressionMiddleware {
	cfg := &CompressionConfig{
		Algorithm: AlgorithmBrotli,
		Level:     defaultCompressionLevel,
		Threshold: defaultThreshold,
		AllowedTypes: []string{
			"application/json",
			"text/*",
		},
	}

	if item.Params != nil {
		if err := utils.Remarshal(item.Params, cfg); err != nil {
			logger.Error("Failed to unmarshal compression middleware config", zap.Error(err))
		}
	}

	switch cfg.Algorithm {
	case AlgorithmGzip, AlgorithmDeflate, AlgorithmBrotli:
	default:
		logger.Warn("Unsupported compression algorithm, falling back to brotli",
			zap.String("algorithm", cfg.Algorithm))
		cfg.Algorithm = AlgorithmBrotli
	}

	cm := &CompressionMiddleware{
		logger:    logger,
		cfg:       cfg,
		name:      "compression",
		weight:    item.Weight,
		algorithm: []byte(cfg.Algorithm),
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 4096))
			},
		},
	}

	cm.writerPool = sync.Pool{
		New: func() interface{} {
			return cm.newWriter()
		},
	}

	return cm
}

func (c *CompressionMiddleware) newWriter() compressWriter {
	switch c.cfg.Algorithm {
	case AlgorithmGzip:
		w, _ := gzip.NewWriterLevel(nil, c.cfg.Level)
		return w
	case AlgorithmDeflate:
		w, _ := flate.NewWriter(nil, c.cfg.Level)
		return w
	default:
		return brotli.NewWriterLevel(nil, c.cfg.Level)
	}
}

func (c *CompressionMiddleware) Name() string { return c.name }
func (c *CompressionMiddleware) Weight() int  { return c.weight }

func (c *CompressionMiddleware) Handle(ctx *fasthttp.RequestCtx, next func(*fasthttp.RequestCtx)) {
	acceptEncoding := ctx.Request.Header.Peek("Accept-Encoding")
	if !bytes.Contains(acceptEncoding, c.algorithm) {
		next(ctx)
		return
	}

	next(ctx)

	if len(ctx.Response.Header.Peek("Content-Encoding")) > 0 {
		return
	}

	if !c.shouldCompress(ctx.Response.Header.Peek("Content-Type")) {
		return
	}

	c.compressResponse(ctx)
}

func (c *CompressionMiddleware) shouldCompress(contentType []byte) bool {
	if len(contentType) == 0 {
		return false
	}

	ct := string(contentType)
	if semicolon := strings.Index(ct, ";"); semicolon != -1 {
		ct = ct[:semicolon]
	}
	ct = strings.TrimSpace(strings.ToLower(ct))

	for _, allowed := range c.cfg.AllowedTypes {
		if allowed == ct {
			return true
		}
		if strings.HasSuffix(allowed, "*") && strings.HasPrefix(ct, strings.TrimSuffix(allowed, "*")) {
			return true
		}
	}

	return false
}

func (c *CompressionMiddleware) compressResponse(ctx *fasthttp.RequestCtx) {
	body := ctx.Response.Body()
	originalSize := len(body)

	if originalSize < c.cfg.Threshold {
		return
	}

	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	writer := c.writerPool.Get().(compressWriter)
	writer.Reset(buf)

	_, writeErr := writer.Write(body)
	closeErr := writer.Close()
	writer.Reset(nil)
	c.writerPool.Put(writer)

	if writeErr != nil || closeErr != nil {
		c.logger.Warn("Response compression failed",
			zap.Int("size", originalSize),
			zap.Errors("errors", []error{writeErr, closeErr}))
		return
	}

	compressedSize := buf.Len()
	if 1.0-float64(compressedSize)/float64(originalSize) < minCompressionGain {
		return
	}

	ctx.Response.Header.SetContentEncoding(c.cfg.Algorithm)
	ctx.Response.Header.AddBytesV("Vary", []byte("Accept-Encoding"))
	ctx.Response.SetBody(append([]byte(nil), buf.Bytes()...))
}
