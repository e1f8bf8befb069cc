package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           caikit API
// @version         1.0
// @description     HTTP API for model loading and inference.
//
// @contact.name   caikit maintainers
// @contact.url    https://github.com/markstur/caikit
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
