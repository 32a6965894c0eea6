// Package models defines the uniform data model that every provider adapter
// normalises into and every persistence operation reads and writes.
//
// The package contains three categories of types:
//
// 1. Provider-native records: [Music], [Artist], [Quality] — what an adapter
//   returns directly from a search or fetch call, before aggregation.
//
// 2. Cross-provider entities: [MusicAggregator] joins one [Music] per
//   [MusicServer] under a single content-derived identity; [Playlist],
//   [PlaylistCollection] and [PlaylistMusicJunction] hold user-facing
//   playlists and their ordered membership.
//
// 3. Catalogue browsing shapes: [Chart], [Tag] and their grouped
//   collections, returned by the chart/tag discovery operations.
//
// All types are plain value structs; validation lives on [MusicAggregator]
// and [Playlist] where invariants (single entry per server, default_server
// membership) can be violated by careless construction.
package models
