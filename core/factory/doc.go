// Package factory is the generic registry behind configurable modules such
// as metrics sinks. A module is named by a type string and carries a map of
// raw settings that its factory decodes into a typed struct.
//
//	reg := factory.NewRegistry[metrics.MetricsSink]()
//	reg.Register("influx", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c InfluxConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewInfluxSink(c.URL, c.Token, c.Org, c.Bucket), nil
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "influx", Conf: map[string]any{"url": "http://localhost:8086"}})
package factory
