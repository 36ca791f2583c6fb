package server

//go:generate swag init -g internal/server/server.go -o internal/server/docs

// @title a11yscan API
// @version 0.1
// @description Submit websites for automated accessibility scans and read their reports.
// @contact.name a11yscan Maintainers
// @contact.url https://github.com/raysh454/a11yscan
// @BasePath /
