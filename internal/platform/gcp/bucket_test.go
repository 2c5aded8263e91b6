package gcp

import "testing"

func TestPublicURL(t *testing.T) {
	cases := []struct {
		name string
		bs   *bucketService
		want string
	}{
		{
			name: "gcs default",
			bs:   &bucketService{bucket: "sb", cfg: ObjectStorageConfig{Mode: ObjectStorageModeGCS}},
			want: "https://storage.googleapis.com/sb/sheets/u1/sheet.png",
		},
		{
			name: "cdn wins",
			bs:   &bucketService{bucket: "sb", cdnDomain: "cdn.example.com", cfg: ObjectStorageConfig{Mode: ObjectStorageModeGCS}},
			want: "https://cdn.example.com/sheets/u1/sheet.png",
		},
		{
			name: "public base",
			bs:   &bucketService{bucket: "sb", cfg: ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: "http://fake-gcs:4443", PublicBaseURL: "http://localhost:4443"}},
			want: "http://localhost:4443/sb/sheets/u1/sheet.png",
		},
		{
			name: "emulator media",
			bs:   &bucketService{bucket: "sb", cfg: ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: "http://fake-gcs:4443"}},
			want: "http://fake-gcs:4443/storage/v1/b/sb/o/sheets%2Fu1%2Fsheet.png?alt=media",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.bs.PublicURL(CategorySheet, "/u1/sheet.png"); got != tc.want {
				t.Fatalf("PublicURL: want=%q got=%q", tc.want, got)
			}
		})
	}
}

func TestContentTypeForKey(t *testing.T) {
	for key, want := range map[string]string{
		"a.PNG":          "image/png",
		"b.jpeg?x=1":     "image/jpeg",
		"c.heic":         "image/heic",
		"d.bin":          "",
		"diaries/e.webp": "image/webp",
	} {
		if got := contentTypeForKey(key); got != want {
			t.Fatalf("contentTypeForKey(%q): want=%q got=%q", key, want, got)
		}
	}
}
