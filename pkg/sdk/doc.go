// Package ytproxy embeds the YouTube Data API key pool in a Go program without
// running the HTTP proxy.
//
// The client rotates requests over several API keys, charges each call's quota
// cost up front, fails over to another key when the upstream reports one as over
// quota, and restores every budget once a day.
//
//	client, _ := ytproxy.New(ctx,
//	    ytproxy.WithKeys("key-1", "key-2"),
//	    ytproxy.WithRedisCache("localhost:6379", "", time.Hour),
//	)
//	defer client.Close()
//
//	videos, _ := client.SearchVideos(ctx, "golang")
//	all, _ := client.ChannelVideos(ctx, "UC_x5XG1OV2P6uZZ5FSM9Ttw")
package ytproxy
