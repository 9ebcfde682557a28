package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ PostworkService = (*Service)(nil)
	_ BlockDispatcher = (*Service)(nil)
	_ SitemapProvider = StaticSitemap(nil)
	_ SitemapProvider = SitemapFunc(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
