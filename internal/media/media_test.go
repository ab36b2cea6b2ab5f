package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanbriolat/lecture-archiver/download"
	"github.com/alanbriolat/lecture-archiver/internal/api"
)

func pair(name string, widths ...int) []Variant {
	var vs []Variant
	for _, w := range widths {
		q := "sd"
		if w >= 1000 {
			q = "hd"
		}
		vs = append(vs, Variant{Width: w, URL: "https://content.example/" + name + "/" + q + ".mp4"})
	}
	return vs
}

func TestPolicy_Select_OrdersPairByWidth(t *testing.T) {
	assert := assert_.New(t)
	hdOnly := Policy{IncludeHD: true}

	for _, files := range []*Files{
		{Primary: pair("p", 720, 1080)},
		{Primary: pair("p", 1080, 720)},
	} {
		urls, err := hdOnly.Select(files)
		require.NoError(t, err)
		assert.Equal([]string{"https://content.example/p/hd.mp4"}, urls)
	}

	urls, err := Policy{IncludeSD: true}.Select(&Files{Primary: pair("p", 1080, 720)})
	require.NoError(t, err)
	assert.Equal([]string{"https://content.example/p/sd.mp4"}, urls)
}

func TestPolicy_Select_SlotOrderAndAudio(t *testing.T) {
	assert := assert_.New(t)

	files := &Files{
		Quaternary: pair("q", 1280, 640),
		Primary:    pair("p", 640, 1280),
		Secondary:  nil,
		Tertiary:   pair("t", 1920, 960),
		Audio: []Variant{
			{URL: "https://content.example/a/audio2.m4a"},
			{URL: "https://content.example/a/audio1.m4a"},
		},
	}
	urls, err := Policy{IncludeSD: true, IncludeHD: true, IncludeAudio: true}.Select(files)
	require.NoError(t, err)
	assert.Equal([]string{
		"https://content.example/p/sd.mp4",
		"https://content.example/p/hd.mp4",
		"https://content.example/t/sd.mp4",
		"https://content.example/t/hd.mp4",
		"https://content.example/q/sd.mp4",
		"https://content.example/q/hd.mp4",
		"https://content.example/a/audio2.m4a",
		"https://content.example/a/audio1.m4a",
	}, urls)

	urls, err = Policy{}.Select(files)
	require.NoError(t, err)
	assert.Equal([]string{}, urls)
}

func TestPolicy_Select_Malformed(t *testing.T) {
	for name, files := range map[string]*Files{
		"one":       {Primary: pair("p", 720)},
		"three":     {Secondary: pair("s", 720, 1080, 1440)},
		"empty url": {Primary: []Variant{{Width: 720}, {Width: 1080, URL: "https://content.example/hd.mp4"}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Policy{IncludeSD: true, IncludeHD: true}.Select(files)
			assert_.ErrorIs(t, err, ErrMalformedMedia)
		})
	}
}

func filenames(items []download.Item) []string {
	var names []string
	for _, item := range items {
		names = append(names, item.Filename)
	}
	return names
}

func TestItems(t *testing.T) {
	assert := assert_.New(t)

	items, err := Items([]string{
		"https://content.example/1/hd1.mp4",
		"https://content.example/2/hd1.mp4",
		"https://content.example/2/audio.m4a?sig=x",
	})
	require.NoError(t, err)
	assert.Equal([]download.Item{
		{URL: "https://content.example/1/hd1.mp4", Filename: "hd1.mp4"},
		{URL: "https://content.example/2/hd1.mp4", Filename: "2_hd1.mp4"},
		{URL: "https://content.example/2/audio.m4a?sig=x", Filename: "audio.m4a"},
	}, items)

	// A prefixed name never collides with a name already taken.
	items, err = Items([]string{
		"https://content.example/a/3_x.mp4",
		"https://content.example/b/x.mp4",
		"https://content.example/c/x.mp4",
		"https://content.example/d/4_x.mp4",
	})
	require.NoError(t, err)
	assert.Equal([]string{"3_x.mp4", "x.mp4", "4_x.mp4", "4_4_x.mp4"}, filenames(items))

	_, err = Items([]string{"https://content.example/"})
	assert.ErrorIs(err, ErrMalformedMedia)
}

const lessonMediaJSON = `{"status":"ok","data":[{"hasContent":true,"hasVideo":true,"video":{"media":{"media":{"current":{
	"primaryFiles":[{"s3Url":"https://content.example/m/1/hd1.mp4","width":1280},{"s3Url":"https://content.example/m/1/sd1.mp4","width":640}],
	"secondaryFiles":[{"s3Url":"https://content.example/m/1/sd2.mp4","width":960},{"s3Url":"https://content.example/m/1/hd2.mp4","width":1920}],
	"tertiaryFiles":[],
	"audioFiles":[{"s3Url":"https://content.example/m/1/audio.mp3"}]
}}}}}]}`

func newLessonServer(t *testing.T, bodies map[string]string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolver_Resolve(t *testing.T) {
	assert := assert_.New(t)
	srv := newLessonServer(t, map[string]string{
		"/lesson/L1/medias":        lessonMediaJSON,
		"/lesson/novideo/medias":   `{"data":[{"hasContent":true,"hasVideo":false}]}`,
		"/lesson/nodata/medias":    `{"data":[]}`,
		"/lesson/bad/medias":       `{"status":"ok"}`,
		"/lesson/nocurrent/medias": `{"data":[{"hasContent":true,"hasVideo":true,"video":{}}]}`,
	})
	client := api.NewClient(srv.URL, nil, srv.Client())
	ctx := context.Background()

	items, err := NewResolver(client, DefaultPolicy).Resolve(ctx, "L1")
	require.NoError(t, err)
	assert.Equal([]download.Item{
		{URL: "https://content.example/m/1/hd1.mp4", Filename: "hd1.mp4"},
		{URL: "https://content.example/m/1/hd2.mp4", Filename: "hd2.mp4"},
	}, items)

	items, err = NewResolver(client, Policy{IncludeSD: true, IncludeAudio: true}).Resolve(ctx, "L1")
	require.NoError(t, err)
	assert.Equal([]download.Item{
		{URL: "https://content.example/m/1/sd1.mp4", Filename: "sd1.mp4"},
		{URL: "https://content.example/m/1/sd2.mp4", Filename: "sd2.mp4"},
		{URL: "https://content.example/m/1/audio.mp3", Filename: "audio.mp3"},
	}, items)

	for _, id := range []string{"novideo", "nodata"} {
		items, err = NewResolver(client, DefaultPolicy).Resolve(ctx, id)
		assert.NoError(err, id)
		assert.Empty(items, id)
	}

	for _, id := range []string{"bad", "nocurrent"} {
		_, err = NewResolver(client, DefaultPolicy).Resolve(ctx, id)
		assert.ErrorIs(err, ErrMalformedMedia, id)
	}

	_, err = NewResolver(client, DefaultPolicy).Resolve(ctx, "missing")
	assert.ErrorIs(err, api.ErrBadResponse)
}
