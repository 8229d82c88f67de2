package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
)

const s2Product = "S2A_MSIL2A_20210601T103021_N0300_R108_T31TCJ_20210601T134211"

// fakeS3 serves the objects of a bucket (path-style)
func fakeS3(bucket string, objects map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("list-type") == "2" {
			prefix := r.URL.Query().Get("prefix")
			var contents strings.Builder
			n := 0
			for k, v := range objects {
				if strings.HasPrefix(k, prefix) {
					fmt.Fprintf(&contents, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(v))
					n++
				}
			}
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>%s</ListBucketResult>`,
				bucket, prefix, n, contents.String())
			return
		}
		v, ok := objects[strings.TrimPrefix(r.URL.Path, "/"+bucket+"/")]
		if !ok {
			w.WriteHeader(404)
			return
		}
		http.ServeContent(w, r, "", time.Time{}, strings.NewReader(v))
	}))
}

func TestS3Prefix(t *testing.T) {
	ip := NewEODataImageProvider("key", "secret")
	prefix, err := ip.prefix(common.Product{Name: s2Product})
	if err != nil {
		t.Fatal(err)
	}
	if expected := "Sentinel-2/MSI/L2A/2021/06/01/" + s2Product + ".SAFE/"; prefix != expected {
		t.Errorf("expected %s, got %s", expected, prefix)
	}
	if _, err := ip.prefix(common.Product{Name: "LC08_L1TP"}); err == nil {
		t.Error("error expected")
	}
}

func TestS3Download(t *testing.T) {
	prefix := "Sentinel-2/MSI/L2A/2021/06/01/" + s2Product + ".SAFE/"
	srv := fakeS3("eodata", map[string]string{
		prefix + "manifest.safe":              "<xml/>",
		prefix + "GRANULE/L2A_T31TCJ/MTD.xml": "<mtd/>",
		"Sentinel-2/MSI/L2A/2021/06/02/other": "other",
	})
	defer srv.Close()

	ip := NewS3ImageProvider(srv.URL, "us-east-1", "eodata", EODataPrefix, "key", "secret")
	dir := t.TempDir()
	if err := ip.Download(context.Background(), common.Product{ID: "a", Name: s2Product}, dir); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, s2Product+".SAFE", "GRANULE", "L2A_T31TCJ", "MTD.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "<mtd/>" {
		t.Errorf("unexpected content: %s", data)
	}
	if _, err := os.Stat(filepath.Join(dir, s2Product+".SAFE", "manifest.safe")); err != nil {
		t.Error(err)
	}
}

func TestS3NotFound(t *testing.T) {
	srv := fakeS3("eodata", map[string]string{})
	defer srv.Close()

	ip := NewS3ImageProvider(srv.URL, "us-east-1", "eodata", EODataPrefix, "key", "secret")
	err := ip.Download(context.Background(), common.Product{ID: "a", Name: s2Product}, t.TempDir())
	if !errors.As(err, &ErrProductNotFound{}) {
		t.Errorf("ErrProductNotFound expected, got %v", err)
	}
}

func TestNewFTPImageProvider(t *testing.T) {
	ip := NewFTPImageProvider("ftp://ftp.example.org/Sentinel-2/{YEAR}/{SCENE}.zip", "u", "p")
	if ip.host != "ftp.example.org:21" || ip.tls || ip.pathPattern != "Sentinel-2/{YEAR}/{SCENE}.zip" {
		t.Errorf("%+v", ip)
	}
	ip = NewFTPImageProvider("ftp.example.org:990", "u", "p")
	if !ip.tls || ip.pathPattern != "{SCENE}.zip" {
		t.Errorf("%+v", ip)
	}
}
