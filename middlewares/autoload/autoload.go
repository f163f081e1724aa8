package autoload

// Import all middleware subpackages for side-effect registration.
import (
	_ "omniagent/middlewares/console"
)
