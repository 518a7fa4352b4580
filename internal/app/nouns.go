// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

// defaultNouns feeds the ((noun)) keyword.
var defaultNouns = []string{
	"anchor", "badger", "beacon", "breeze", "canyon", "cipher", "comet",
	"compass", "crystal", "ember", "falcon", "fjord", "glacier", "harbor",
	"horizon", "lantern", "meadow", "meteor", "nebula", "orchard", "otter",
	"pebble", "pinecone", "prairie", "quartz", "raven", "reef", "river",
	"saddle", "sparrow", "summit", "thicket", "tundra", "violet", "walnut",
	"willow", "zephyr",
}
