/*
Package config loads the optional run settings for extsort.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+----+ +-----+----+ +-----+----+
	|   YAML   | |   JSON   | |   HCL    |
	|  Parser  | |  Parser  | |  Parser  |
	+----------+ +----------+ +----------+

🎯 Purpose:
- Reads pool size, include/exclude globs, failure log and journal locations
- Picks a parser from the file extension
- Applies defaults and rejects bad values

Source and destination directories are never read from a config file. They
come from the command line so one config can be reused across trees.

🔍 Example:

	cfg, err := config.Find(ctx, ".")
	if err != nil {
		return err
	}
	result, err := engine.Run(ctx, engine.Options{
		Source:      src,
		Destination: dst,
		PoolSize:    cfg.PoolSize,
		Include:     cfg.Include,
		Exclude:     cfg.Exclude,
	})
*/
package config
