package statuscheck

import (
    "context"
    "errors"
    "time"

    awscfg "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/service/s3"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
    Ping(ctx context.Context) error
}

// BucketHeader checks that a bucket is reachable.
type BucketHeader interface {
    HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Checker aggregates health checks for the viewer's external dependencies.
type Checker struct {
    redis    RedisPinger
    s3Bucket string
    s3       BucketHeader
}

// Options configures the Checker.
type Options struct {
    Redis    RedisPinger
    S3Bucket string
    // S3 overrides the client built from the default AWS config.
    S3 BucketHeader
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Redis Status `json:"redis"`
    S3    Status `json:"s3"`
    MuPDF Status `json:"mupdf"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
    return &Checker{redis: opts.Redis, s3Bucket: opts.S3Bucket, s3: opts.S3}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Redis: c.checkRedis(ctx),
        S3:    c.checkS3(ctx),
        MuPDF: c.checkMuPDF(),
    }
}

func (c *Checker) checkRedis(ctx context.Context) Status {
    if c.redis == nil {
        return Status{OK: false, Message: "Mirror disabled"}
    }
    ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
    defer cancel()
    if err := c.redis.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
    if c.s3Bucket == "" {
        return Status{OK: false, Message: "Bucket not configured"}
    }
    ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
    defer cancel()
    cli := c.s3
    if cli == nil {
        cfg, err := awscfg.LoadDefaultConfig(ctx)
        if err != nil {
            return Status{OK: false, Message: trimError(err)}
        }
        cli = s3.NewFromConfig(cfg)
    }
    if _, err := cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.s3Bucket}); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

// MuPDF is linked in through go-fitz, so it is always present.
func (c *Checker) checkMuPDF() Status {
    return Status{OK: true, Message: "Embedded"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
