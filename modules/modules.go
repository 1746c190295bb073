// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Mufeed Ali

// Package modules lists every platform built into ccos.
package modules

import (
	"ccos/internal/platform"
	"ccos/modules/elevenlabs"
	"ccos/modules/ga4"
	"ccos/modules/gmail"
	"ccos/modules/googleads"
	"ccos/modules/grants"
	"ccos/modules/instagram"
	"ccos/modules/linkedin"
	"ccos/modules/mixpanel"
	"ccos/modules/mubert"
	"ccos/modules/newsapi"
	"ccos/modules/openai"
	"ccos/modules/reddit"
	"ccos/modules/resend"
	"ccos/modules/runway"
	"ccos/modules/stripe"
	"ccos/modules/veo"
)

var all = []platform.Module{
	&resend.Module{},
	&gmail.Module{},
	&instagram.Module{},
	&stripe.Module{},
	&ga4.Module{},
	&googleads.Module{},
	&linkedin.Module{},
	&reddit.Module{},
	&openai.Module{},
	&elevenlabs.Module{},
	&mubert.Module{},
	&runway.Module{},
	&veo.Module{},
	&newsapi.Module{},
	&grants.Module{},
	&mixpanel.Module{},
}

// All returns a registry holding every built-in platform.
func All() *platform.Registry {
	r := platform.NewRegistry()
	for _, m := range all {
		m.Register(r)
	}
	return r
}
